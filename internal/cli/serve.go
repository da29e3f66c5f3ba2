// Package cli — serve.go implements the generator run behind the root
// command: validate the port range, build the shared payload, run one
// worker per port and report how each one ended.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudiu-m/dev-tools/internal/generator"
	"github.com/claudiu-m/dev-tools/internal/model"
	"github.com/claudiu-m/dev-tools/internal/port"
)

// runServe is the main logic function for the root command.
// Worker failures are reported but never turn into a non-zero exit code.
func runServe(cmd *cobra.Command, args []string) error {
	// Step 1: Validate arguments before touching any socket.
	r, err := port.ParseRange(args)
	if err != nil {
		return argumentError(cmd, err)
	}

	// Step 2: Build the shared payload from the profile.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := cfg.Serve.Payload()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidArgument, "cannot build payload", err)
	}
	VerboseLog("Serving ports %s with a %d byte payload of 0x%02x", r, p.Len(), p.Fill())

	// Step 3: Warn about ports that are going to fail to bind.
	if verbose {
		scanner := port.NewScannerForHost(cfg.Serve.BindHost)
		if used := scanner.GetUsedPorts(r); len(used) > 0 {
			VerboseLog("Ports already in use (their workers will fail): %v", used)
			if free, err := scanner.FindAvailableRange(r.Last()+1, 65535, r.Count); err == nil {
				VerboseLog("Next free range of %d ports: %s", r.Count, free)
			}
		}
	}

	// Step 4: Run every worker and wait for all of them.
	stdout := cmd.OutOrStdout()
	progress := stdout
	if IsJSONOutput() {
		progress = io.Discard
	}
	gen := generator.New(generator.Options{
		Host:    cfg.Serve.BindHost,
		Payload: p,
		Out:     progress,
		Err:     cmd.ErrOrStderr(),
		Tracef:  VerboseLog,
	})
	results := gen.Run(cmd.Context(), r)

	// Step 5: Output the result.
	failed := 0
	for i := range results {
		if results[i].Failed() {
			failed++
		}
	}
	VerboseLog("%d of %d workers failed", failed, len(results))

	if IsJSONOutput() {
		printServeResultJSON(stdout, r, results)
	}
	return nil
}

// serveWorkerJSON is the JSON output structure for one worker.
type serveWorkerJSON struct {
	Index      int    `json:"index"`
	Port       int    `json:"port"`
	Peer       string `json:"peer,omitempty"`
	BytesSent  int64  `json:"bytesSent"`
	AvgRate    int64  `json:"avgRate"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// serveResultJSON is the JSON report of a generator run.
type serveResultJSON struct {
	Range   port.Range        `json:"range"`
	Workers []serveWorkerJSON `json:"workers"`
	End     bool              `json:"end"`
}

// printServeResultJSON outputs the per-worker outcomes as structured JSON.
func printServeResultJSON(w io.Writer, r port.Range, results []model.Result) {
	out := serveResultJSON{
		Range:   r,
		Workers: make([]serveWorkerJSON, 0, len(results)),
		End:     true,
	}
	for _, res := range results {
		entry := serveWorkerJSON{
			Index:      res.Index,
			Port:       res.Port,
			Peer:       res.Peer,
			BytesSent:  res.BytesSent,
			AvgRate:    res.AvgRate,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		out.Workers = append(out.Workers, entry)
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(w, string(data))
}

// FormatRate renders a bytes-per-second value as MB/s with one decimal,
// the unit the sink reports in.
//
// Example:
//
//	1048576 → "1.0 MB/s"
func FormatRate(bytesPerSecond float64) string {
	return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1<<20))
}

// formatElapsed renders a duration in seconds with one decimal.
func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
