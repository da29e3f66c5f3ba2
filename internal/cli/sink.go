// Package cli — sink.go implements the "tgen sink" command.
//
// The sink connects to every port of a running generator, drains all
// streams and prints the aggregate receive rate until it is interrupted,
// its --duration expires or the generator closes every stream.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudiu-m/dev-tools/internal/model"
	"github.com/claudiu-m/dev-tools/internal/port"
	"github.com/claudiu-m/dev-tools/internal/sink"
)

// sinkFlags holds the flag values for the sink command.
type sinkFlags struct {
	duration time.Duration // --duration: stop after this long (0 = until interrupted)
	interval time.Duration // --interval: override sink.reportInterval
	verify   bool          // --verify: check every byte against the fill byte
}

// NewSinkCommand creates the "sink" cobra command.
func NewSinkCommand() *cobra.Command {
	flags := &sinkFlags{}

	cmd := &cobra.Command{
		Use:   "sink [flags] <host> <port_base> <range>",
		Short: "Receive and measure the streams of a running generator",
		Long: `Connect to every port in [port_base, port_base+range) on host, read all
streams concurrently and print the receive rate averaged over a sliding
window of samples. Ctrl-C ends the run.

Examples:
  tgen sink 192.168.1.10 8000 3
  tgen sink --duration 30s --verify 127.0.0.1 8000 16
  tgen --json sink --duration 10s 10.0.0.2 9000 4`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSink(cmd, args, flags)
		},
	}
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().DurationVar(&flags.duration, "duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "Rate sample interval (default: from profile, 1s)")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Fail on any byte that differs from the fill byte")

	return cmd
}

// runSink is the main logic function for the sink command.
func runSink(cmd *cobra.Command, args []string, flags *sinkFlags) error {
	// Step 1: Validate arguments.
	host, r, err := port.ParseHostRange(args)
	if err != nil {
		return argumentError(cmd, err)
	}
	if flags.duration < 0 || flags.interval < 0 {
		return model.WrapCLIError(model.ExitInvalidArgument, "bad arguments",
			fmt.Errorf("%w: --duration and --interval must not be negative", model.ErrUsage))
	}

	// Step 2: Resolve sink settings from the profile and flags.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	interval, err := cfg.Sink.Interval()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidArgument, "cannot use profile", err)
	}
	if flags.interval > 0 {
		interval = flags.interval
	}

	opts := sink.Options{
		Host:      host,
		Range:     r,
		ReadBytes: cfg.Sink.ReadBytes,
		Interval:  interval,
		Window:    cfg.Sink.Window,
		Duration:  flags.duration,
		Tracef:    VerboseLog,
	}
	if flags.verify {
		p, err := cfg.Serve.Payload()
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidArgument, "cannot build payload", err)
		}
		opts.Verify = p
	}
	stdout := cmd.OutOrStdout()
	if !IsJSONOutput() {
		opts.Out = stdout
	}

	// Step 3: Run until interrupted, expired or drained.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	VerboseLog("Connecting to %s ports %s", host, r)
	rep, runErr := sink.Run(ctx, opts)
	if rep == nil {
		return model.WrapCLIError(model.ExitGeneralError, "sink failed", runErr)
	}

	// Step 4: Output the result.
	printSinkResult(stdout, rep)
	if runErr != nil {
		return model.WrapCLIError(model.ExitGeneralError, "sink failed", runErr)
	}
	return nil
}

// printSinkResult outputs the sink report in text or JSON format.
func printSinkResult(w io.Writer, rep *sink.Report) {
	if IsJSONOutput() {
		printSinkResultJSON(w, rep)
	} else {
		printSinkResultText(w, rep)
	}
}

// printSinkResultJSON outputs the sink report as structured JSON.
func printSinkResultJSON(w io.Writer, rep *sink.Report) {
	type resultJSON struct {
		*sink.Report
		ElapsedMs  int64 `json:"elapsedMs"`
		TotalBytes int64 `json:"totalBytes"`
	}
	data, _ := json.MarshalIndent(resultJSON{
		Report:     rep,
		ElapsedMs:  rep.Elapsed.Milliseconds(),
		TotalBytes: rep.TotalBytes(),
	}, "", "  ")
	fmt.Fprintln(w, string(data))
}

// printSinkResultText outputs one line per port and a total.
//
//	port 8000: 1073741824 bytes, avg 512.0 MB/s
//	total: 3221225472 bytes in 2.0s, rate 1536.0 MB/s
func printSinkResultText(w io.Writer, rep *sink.Report) {
	if rep.Reason == sink.StopCancelled {
		fmt.Fprintln(w, "Test Cancelled")
	}
	for _, ps := range rep.Ports {
		line := fmt.Sprintf("port %d: %d bytes, avg %s", ps.Port, ps.Bytes, FormatRate(float64(ps.AvgRate)))
		if ps.Error != "" {
			line += " (" + ps.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "total: %d bytes in %s, rate %s\n",
		rep.TotalBytes(), formatElapsed(rep.Elapsed), FormatRate(rep.MeanRate))
}
