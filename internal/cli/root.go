// Package cli implements the cobra-based CLI commands for tgen.
//
// The root command is the traffic generator itself. The sink subcommand is
// defined in sink.go. This file defines the root command, the global flags
// and error-to-exit-code handling.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claudiu-m/dev-tools/internal/config"
	"github.com/claudiu-m/dev-tools/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command.
var (
	// jsonOutput replaces progress text with a single JSON report.
	jsonOutput bool

	// verbose enables trace output on stderr.
	verbose bool

	// configPath is the optional profile file.
	configPath string

	// stderr receives verbose traces and error reports.
	stderr io.Writer = os.Stderr
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// Positional arguments are not validated by cobra: the generator's own
// argument parser reports wrong arity as a usage error so that every
// argument failure exits with the same code. Flags must come before the
// positional arguments, which lets "tgen 8000 -1" reach the range check
// instead of being rejected as an unknown flag. Execute escapes a negative
// port base the same way.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tgen [flags] <port_base> <range>",
		Short: "Synthetic TCP traffic generator",
		Long: `tgen opens one TCP listener per port in [port_base, port_base+range),
accepts a single client on each and streams a constant 0xFF payload to it
until the client goes away. All ports are served concurrently; the command
returns once every port has been served and closed.

Up to 16 ports can be driven by one run.

Examples:
  tgen 8000 3
  tgen --json 8000 3
  tgen --config tgen.yaml 9000 16`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},

		// Errors and usage are printed by Execute.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().SetInterspersed(false)

	// Unknown or malformed flags are usage errors like a wrong argument count.
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidArgument, "usage: "+c.UseLine(),
			fmt.Errorf("%w: %v", model.ErrUsage, err))
	})

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print a JSON report instead of progress lines")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Profile file (.yaml, .yml, .json, .jsonc)")

	rootCmd.AddCommand(NewSinkCommand())

	return rootCmd
}

// Execute runs the root command and exits with the code its error carries.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	err := executeArgs(rootCmd, os.Args[1:])
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
	} else {
		printError(err.Error(), nil)
	}
	os.Exit(int(exitCodeFor(err)))
}

// executeArgs runs rootCmd with args after marking a leading negative
// port base as positional.
func executeArgs(rootCmd *cobra.Command, args []string) error {
	rootCmd.SetArgs(escapeNegativeBase(rootCmd, args))
	return rootCmd.Execute()
}

// escapeNegativeBase inserts "--" before the first positional argument of
// the root command when it is a negative integer, so "tgen -8000 3" is
// rejected by the range check instead of the flag parser. Flag values such
// as "--config -1" are left alone.
func escapeNegativeBase(rootCmd *cobra.Command, args []string) []string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" || !strings.HasPrefix(a, "-") {
			return args
		}
		if _, err := strconv.Atoi(a); err == nil {
			escaped := make([]string, 0, len(args)+1)
			escaped = append(escaped, args[:i]...)
			escaped = append(escaped, "--")
			return append(escaped, args[i:]...)
		}
		if flagTakesValue(rootCmd, a) {
			i++
		}
	}
	return args
}

// flagTakesValue reports whether arg is a root flag whose value is the
// next argument.
func flagTakesValue(rootCmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	name := strings.TrimLeft(arg, "-")
	flag := rootCmd.PersistentFlags().Lookup(name)
	if flag == nil && !strings.HasPrefix(arg, "--") && len(name) == 1 {
		flag = rootCmd.PersistentFlags().ShorthandLookup(name)
	}
	return flag != nil && flag.NoOptDefVal == ""
}

// exitCodeFor maps a command error onto the process exit code.
func exitCodeFor(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitGeneralError
}

// argumentError wraps a parse or validation failure into a CLIError that
// exits with -EINVAL.
func argumentError(cmd *cobra.Command, err error) error {
	if errors.Is(err, model.ErrUsage) {
		return model.WrapCLIError(model.ExitInvalidArgument, "usage: "+cmd.UseLine(), err)
	}
	return model.WrapCLIError(model.ExitInvalidArgument, "bad arguments", err)
}

// loadConfig reads the --config profile, or the defaults without one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgument, "cannot use profile", err)
	}
	if configPath != "" {
		VerboseLog("Loaded profile %s", configPath)
	}
	return cfg, nil
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stderr even in JSON mode: stdout carries the report only.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
