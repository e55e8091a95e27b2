// Package pipeline runs report types through link resolution, download and
// manifest recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/copilot-metrics/client"
	"github.com/aluiziolira/copilot-metrics/models"
	"github.com/aluiziolira/copilot-metrics/parser"
)

// LinkResolver obtains the download links of the latest report of a type.
type LinkResolver interface {
	Resolve(ctx context.Context, reportType string) (*models.DownloadLinkSet, error)
}

// FileFetcher streams one link to a local file and returns the bytes written.
type FileFetcher interface {
	Fetch(ctx context.Context, url, destPath string) (int64, error)
}

// Coordinator processes report types sequentially, tolerating the failure of
// any single one.
type Coordinator struct {
	resolver LinkResolver
	fetcher  FileFetcher
	archive  *Archive
	metrics  *client.Metrics
	logger   *slog.Logger
	now      func() time.Time
	runID    string
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithArchive mirrors recorded reports and the manifest to a.
func WithArchive(a *Archive) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithMetrics records report outcomes on m.
func WithMetrics(m *client.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRunID tags the run result with id.
func WithRunID(id string) Option {
	return func(c *Coordinator) { c.runID = id }
}

// NewCoordinator builds a coordinator over resolver and fetcher.
func NewCoordinator(resolver LinkResolver, fetcher FileFetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		resolver: resolver,
		fetcher:  fetcher,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes reportTypes in order, writing files under outputDir, and
// writes outputDir/metadata.json when at least one report type was recorded.
// Per-report failures are part of the result; the returned error is reserved
// for failures that abort the whole run.
func (c *Coordinator) Run(ctx context.Context, reportTypes []string, outputDir string) (*models.RunResult, error) {
	result := &models.RunResult{
		RunID:     c.runID,
		StartTime: c.now(),
	}

	for _, reportType := range reportTypes {
		if err := ctx.Err(); err != nil {
			result.EndTime = c.now()
			return result, fmt.Errorf("run interrupted before %s: %w", reportType, err)
		}

		c.logger.Info("processing report", slog.String("report_type", reportType))
		outcome := c.processReport(ctx, models.ReportRequest{ReportType: reportType}, outputDir)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Succeeded() {
			result.Entries = append(result.Entries, *outcome.Entry)
			c.metrics.IncReport("recorded")
			c.archiveReport(ctx, outcome)
			continue
		}

		c.metrics.IncReport("failed")
		c.logFailure(outcome)
	}

	if len(result.Entries) > 0 {
		path, err := WriteManifest(outputDir, result.Entries)
		if err != nil {
			result.EndTime = c.now()
			return result, err
		}
		result.ManifestPath = path
		c.logger.Info("metadata saved", slog.String("path", path), slog.Int("entries", len(result.Entries)))
		c.archiveManifest(ctx, path)
	} else {
		c.logger.Warn("no report type completed, manifest not written")
	}

	result.EndTime = c.now()
	return result, nil
}

func (c *Coordinator) processReport(ctx context.Context, req models.ReportRequest, outputDir string) models.ReportOutcome {
	outcome := models.ReportOutcome{
		ReportType: req.ReportType,
		State:      models.StatePending,
	}
	fail := func(err error) models.ReportOutcome {
		outcome.FailedAt = outcome.State
		outcome.State = models.StateFailed
		outcome.Err = err
		return outcome
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fail(&client.FileSystemError{Op: "mkdir", Path: outputDir, Err: err})
	}

	links, err := c.resolver.Resolve(ctx, req.ReportType)
	if err != nil {
		return fail(err)
	}
	outcome.State = models.StateLinksResolved

	prefix := parser.ReportPrefix(req.ReportType)
	runTimestamp := parser.RunTimestamp(c.now())

	for i, link := range links.DownloadLinks {
		dest := filepath.Join(outputDir, parser.PartFilename(prefix, runTimestamp, i+1))
		n, err := c.fetcher.Fetch(ctx, link, dest)
		if err != nil {
			return fail(fmt.Errorf("download part %03d: %w", i+1, err))
		}
		outcome.Files = append(outcome.Files, models.DownloadedFile{Path: dest, Bytes: n})
	}
	outcome.State = models.StateFilesDownloaded

	c.logger.Info("all files downloaded",
		slog.String("report_type", req.ReportType),
		slog.String("output_dir", absPath(outputDir)),
		slog.Int("files", len(outcome.Files)),
	)

	outcome.Entry = &models.RunMetadataEntry{
		ReportStartDay:    links.ReportStartDay,
		ReportEndDay:      links.ReportEndDay,
		ReportType:        req.ReportType,
		DownloadTimestamp: parser.DownloadTimestamp(c.now()),
		FilesCount:        len(links.DownloadLinks),
	}
	outcome.State = models.StateRecorded
	return outcome
}

func (c *Coordinator) logFailure(outcome models.ReportOutcome) {
	label := client.ErrorTypeLabel(outcome.Err)
	c.metrics.IncError(label)

	attrs := []any{
		slog.String("report_type", outcome.ReportType),
		slog.String("stage", string(outcome.FailedAt)),
		slog.String("error_type", label),
		slog.Any("error", outcome.Err),
		slog.Int("files_left_on_disk", len(outcome.Files)),
	}
	var httpErr *client.HTTPError
	if errors.As(outcome.Err, &httpErr) {
		attrs = append(attrs,
			slog.Int("status", httpErr.StatusCode),
			slog.String("response", httpErr.Body),
		)
	}
	c.logger.Warn("failed to download report, continuing with next report", attrs...)
}

func (c *Coordinator) archiveReport(ctx context.Context, outcome models.ReportOutcome) {
	if c.archive == nil {
		return
	}
	for _, f := range outcome.Files {
		if err := c.archive.Upload(ctx, f.Path); err != nil {
			c.metrics.IncError("archive")
			c.logger.Warn("archive upload failed",
				slog.String("report_type", outcome.ReportType),
				slog.String("path", f.Path),
				slog.Any("error", err),
			)
		}
	}
}

func (c *Coordinator) archiveManifest(ctx context.Context, path string) {
	if c.archive == nil {
		return
	}
	if err := c.archive.Upload(ctx, path); err != nil {
		c.metrics.IncError("archive")
		c.logger.Warn("archive upload failed", slog.String("path", path), slog.Any("error", err))
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
