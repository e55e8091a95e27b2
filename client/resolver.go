package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/copilot-metrics/config"
	"github.com/aluiziolira/copilot-metrics/models"
	"github.com/aluiziolira/copilot-metrics/parser"
	"github.com/gocolly/colly/v2"
)

const acceptHeader = "application/vnd.github+json"

// Resolver asks the enterprise API for the latest download links of a report.
type Resolver struct {
	baseURL    string
	enterprise string
	token      string
	apiVersion string
	collector  *colly.Collector
	Metrics    *Metrics
}

// NewResolver builds a resolver configured from cfg.
func NewResolver(cfg *config.Config, metrics *Metrics) (*Resolver, error) {
	parsed, err := url.Parse(cfg.APIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = true
	if cfg.Timeout > 0 {
		collector.SetRequestTimeout(cfg.Timeout)
	}

	return &Resolver{
		baseURL:    cfg.APIBaseURL(),
		enterprise: cfg.Enterprise,
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
		collector:  collector,
		Metrics:    metrics,
	}, nil
}

// WithTransport replaces the HTTP transport used for API calls.
func (r *Resolver) WithTransport(rt http.RoundTripper) {
	r.collector.WithTransport(rt)
}

// Endpoint returns the "latest report" URL for reportType.
func (r *Resolver) Endpoint(reportType string) string {
	return fmt.Sprintf("%s/enterprises/%s/copilot/metrics/reports/%s/latest",
		r.baseURL, url.PathEscape(r.enterprise), url.PathEscape(reportType))
}

// Resolve issues a single authenticated GET for reportType and decodes the
// download link set. Non-2xx answers yield *HTTPError, bodies lacking
// required fields yield *parser.MalformedResponseError.
func (r *Resolver) Resolve(ctx context.Context, reportType string) (*models.DownloadLinkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := r.Endpoint(reportType)
	slog.Info("fetching download links",
		slog.String("report_type", reportType),
		slog.String("url", endpoint),
	)

	c := r.collector.Clone()
	c.ParseHTTPErrorResponse = true
	c.AllowURLRevisit = true

	var (
		statusCode int
		body       []byte
	)
	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", acceptHeader)
		req.Headers.Set("Authorization", "Bearer "+r.token)
		req.Headers.Set("X-GitHub-Api-Version", r.apiVersion)
		r.Metrics.IncRequest("resolve")
	})
	c.OnResponse(func(resp *colly.Response) {
		statusCode = resp.StatusCode
		body = resp.Body
	})

	start := time.Now()
	err := c.Visit(endpoint)
	r.Metrics.ObserveDuration("resolve", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", reportType, classifyError(err))
	}

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		bodyText := string(body)
		if len(bodyText) > maxErrorBody {
			bodyText = bodyText[:maxErrorBody]
		}
		return nil, &HTTPError{
			URL:        endpoint,
			StatusCode: statusCode,
			Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
			Body:       bodyText,
		}
	}

	set, err := parser.DecodeLinkSet(body)
	if err != nil {
		return nil, err
	}

	slog.Info("report period resolved",
		slog.String("report_type", reportType),
		slog.String("report_start_day", set.ReportStartDay),
		slog.String("report_end_day", set.ReportEndDay),
		slog.Int("files", len(set.DownloadLinks)),
	)
	return set, nil
}
