// Package main is the entry point for the tgen traffic generator.
//
// Running "tgen <port_base> <range>" serves a constant stream on every port
// of the range; "tgen sink" is the matching receiver. Everything lives in
// internal/cli.
package main

import (
	"github.com/claudiu-m/dev-tools/internal/cli"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
