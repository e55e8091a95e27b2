package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aluiziolira/copilot-metrics/client"
	"github.com/aluiziolira/copilot-metrics/models"
)

func printSummary(w io.Writer, result *models.RunResult) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Download complete")
	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Report types:  %d\n", len(result.Outcomes))
	fmt.Fprintf(w, "  Recorded:      %d\n", len(result.Entries))
	fmt.Fprintf(w, "  Failed:        %d\n", result.FailedCount())
	fmt.Fprintf(w, "  Files:         %d\n", result.FileCount())
	for _, o := range result.Outcomes {
		if o.Succeeded() {
			fmt.Fprintf(w, "    %-20s %s..%s (%d files)\n", o.ReportType, o.Entry.ReportStartDay, o.Entry.ReportEndDay, o.Entry.FilesCount)
			continue
		}
		fmt.Fprintf(w, "    %-20s failed at %s: %s\n", o.ReportType, o.FailedAt, client.ErrorTypeLabel(o.Err))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	if result.ManifestPath != "" {
		fmt.Fprintf(w, "  Metadata:      %s\n", result.ManifestPath)
	} else {
		fmt.Fprintln(w, "  Metadata:      not written")
	}
	fmt.Fprintln(w, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
