package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/copilot-metrics/models"
)

// MalformedResponseError reports an API body that lacks required fields.
type MalformedResponseError struct {
	Missing []string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %v", e.Err)
	}
	return fmt.Sprintf("malformed response: missing %s", strings.Join(e.Missing, ", "))
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

type linkSetBody struct {
	ReportStartDay *string   `json:"report_start_day"`
	ReportEndDay   *string   `json:"report_end_day"`
	DownloadLinks  *[]string `json:"download_links"`
}

// DecodeLinkSet parses the "latest report" response body. A present but
// empty download_links array is valid.
func DecodeLinkSet(body []byte) (*models.DownloadLinkSet, error) {
	var raw linkSetBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	var missing []string
	if raw.ReportStartDay == nil {
		missing = append(missing, "report_start_day")
	}
	if raw.ReportEndDay == nil {
		missing = append(missing, "report_end_day")
	}
	if raw.DownloadLinks == nil {
		missing = append(missing, "download_links")
	}
	if len(missing) > 0 {
		return nil, &MalformedResponseError{Missing: missing}
	}

	links := make([]string, 0, len(*raw.DownloadLinks))
	for i, link := range *raw.DownloadLinks {
		if strings.TrimSpace(link) == "" {
			return nil, &MalformedResponseError{Missing: []string{fmt.Sprintf("download_links[%d]", i)}}
		}
		links = append(links, link)
	}

	return &models.DownloadLinkSet{
		ReportStartDay: *raw.ReportStartDay,
		ReportEndDay:   *raw.ReportEndDay,
		DownloadLinks:  links,
	}, nil
}

// ReportPrefix returns the part of reportType before its first '-'.
func ReportPrefix(reportType string) string {
	if i := strings.IndexByte(reportType, '-'); i >= 0 {
		return reportType[:i]
	}
	return reportType
}

// RunTimestamp formats t as YYYYMMDD_HHMMSS.
func RunTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// DownloadTimestamp formats t as an ISO-8601 local time with microseconds.
func DownloadTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}

// PartFilename names the index-th (1-based) file of a report.
func PartFilename(prefix, runTimestamp string, index int) string {
	return fmt.Sprintf("copilot_%s_%s_part%03d.json", prefix, runTimestamp, index)
}
