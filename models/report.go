// Package models defines data structures for the metrics downloader.
package models

import "time"

// ReportRequest identifies one report kind to fetch, e.g. "enterprise-28-day".
type ReportRequest struct {
	ReportType string
}

// DownloadLinkSet is the resolved set of short-lived links for one report.
type DownloadLinkSet struct {
	ReportStartDay string   `json:"report_start_day"`
	ReportEndDay   string   `json:"report_end_day"`
	DownloadLinks  []string `json:"download_links"`
}

// DownloadedFile describes a payload written to disk.
type DownloadedFile struct {
	Path  string
	Bytes int64
}

// RunMetadataEntry is one manifest record for a fully downloaded report type.
type RunMetadataEntry struct {
	ReportStartDay    string `json:"report_start_day"`
	ReportEndDay      string `json:"report_end_day"`
	ReportType        string `json:"report_type"`
	DownloadTimestamp string `json:"download_timestamp"`
	FilesCount        int    `json:"files_count"`
}

// ReportState tracks a report type through a run.
type ReportState string

const (
	StatePending         ReportState = "PENDING"
	StateLinksResolved   ReportState = "LINKS_RESOLVED"
	StateFilesDownloaded ReportState = "FILES_DOWNLOADED"
	StateRecorded        ReportState = "RECORDED"
	StateFailed          ReportState = "FAILED"
)

// ReportOutcome is the result of processing a single report type. Entry is
// set only when State is StateRecorded; Err and FailedAt only when it is
// StateFailed.
type ReportOutcome struct {
	ReportType string
	State      ReportState
	Entry      *RunMetadataEntry
	Files      []DownloadedFile
	FailedAt   ReportState
	Err        error
}

// Succeeded reports whether the outcome produced a manifest entry.
func (o ReportOutcome) Succeeded() bool {
	return o.State == StateRecorded && o.Entry != nil
}

// RunResult holds the overall result of a run.
type RunResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Outcomes     []ReportOutcome
	Entries      []RunMetadataEntry
	ManifestPath string
}

// FailedCount returns the number of report types that did not complete.
func (r *RunResult) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// FileCount returns the number of files written, including those of failed
// report types.
func (r *RunResult) FileCount() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.Files)
	}
	return n
}
