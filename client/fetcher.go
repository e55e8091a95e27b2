package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/copilot-metrics/config"
)

// ChunkSize is the read/write unit used when streaming a payload to disk.
const ChunkSize = 8 * 1024

// Fetcher streams report payloads from pre-signed links to local files.
type Fetcher struct {
	client    *http.Client
	userAgent string
	Metrics   *Metrics
}

// NewFetcher builds a fetcher configured from cfg. A zero cfg.Timeout leaves
// the transfer without an overall deadline.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		Metrics:   metrics,
	}
}

// WithTransport replaces the HTTP transport used for downloads.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Fetch downloads rawURL into destPath and returns the number of bytes
// written. The destination is created or truncated; on failure whatever was
// already written stays in place.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) (int64, error) {
	slog.Info("downloading", slog.String("file", filepath.Base(destPath)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.Metrics.IncRequest("fetch")
	start := time.Now()
	defer func() {
		f.Metrics.ObserveDuration("fetch", time.Since(start))
	}()

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, newHTTPError(rawURL, resp)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, &FileSystemError{Op: "create", Path: destPath, Err: err}
	}

	written, copyErr := streamChunks(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, &FileSystemError{Op: "close", Path: destPath, Err: closeErr}
	}

	f.Metrics.AddFile(written)
	slog.Info("saved",
		slog.String("path", destPath),
		slog.Int64("bytes", written),
	)
	return written, nil
}

// streamChunks copies src to dst in ChunkSize pieces. Read failures are
// reported as transfer errors, write failures as *FileSystemError.
func streamChunks(dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				return written, &FileSystemError{Op: "write", Path: dst.Name(), Err: writeErr}
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			var classified error = ErrConnection{Err: readErr}
			var timeout ErrTimeout
			if errors.As(classifyError(readErr), &timeout) {
				classified = timeout
			}
			return written, fmt.Errorf("read body: %w", classified)
		}
	}
}
