// Package model defines the domain types and value objects for the tgen
// traffic generator.
//
// This package contains pure data structures with no external dependencies.
// Nothing here outlives a process run: worker states, results and port
// ranges are created at startup and discarded at exit.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and the per-worker error type (WorkerError).
package model
