package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/copilot-metrics/config"
	"github.com/aluiziolira/copilot-metrics/pipeline"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GITHUB_API_URL", "GITHUB_ENTERPRISE", "GITHUB_TOKEN", "RAW_DATA_DIR",
		"COPILOT_REPORT_TYPES", "GITHUB_API_VERSION", "COPILOT_HTTP_TIMEOUT",
		"COPILOT_USER_AGENT", "COPILOT_VERBOSE", "COPILOT_METRICS_FILE",
		"COPILOT_ARCHIVE_URL", "ENVIRONMENT", "ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildConfigFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("GITHUB_ENTERPRISE", "FROM_ENV")
	t.Setenv("RAW_DATA_DIR", "env/raw")

	cmd := newRootCmd()
	args := []string{"--env-dir", t.TempDir(), "--enterprise", "FROM_FLAG", "--report-type", "users-28-day", "--timeout", "30s"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags := cmd.Flags()
	opts := &options{}
	opts.envDir, _ = flags.GetString("env-dir")
	opts.enterprise, _ = flags.GetString("enterprise")
	opts.reportTypes, _ = flags.GetStringSlice("report-type")
	opts.timeout, _ = flags.GetDuration("timeout")

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Enterprise != "FROM_FLAG" {
		t.Errorf("Enterprise=%q, want flag value", cfg.Enterprise)
	}
	if cfg.OutputDir != "env/raw" {
		t.Errorf("OutputDir=%q, want env value", cfg.OutputDir)
	}
	if len(cfg.ReportTypes) != 1 || cfg.ReportTypes[0] != "users-28-day" {
		t.Errorf("ReportTypes=%v", cfg.ReportTypes)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout=%v", cfg.Timeout)
	}
	if cfg.UserAgent != "copilot-metrics/"+version {
		t.Errorf("UserAgent=%q", cfg.UserAgent)
	}
}

func TestBuildConfigEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("GITHUB_ENTERPRISE", "FROM_ENV")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("enterprise: FROM_FILE\noutput_dir: file/raw\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cfg, err := buildConfig(cmd, &options{configFile: path, envDir: dir})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Enterprise != "FROM_ENV" {
		t.Errorf("Enterprise=%q, want env value", cfg.Enterprise)
	}
	if cfg.OutputDir != "file/raw" {
		t.Errorf("OutputDir=%q, want file value", cfg.OutputDir)
	}
}

func TestBuildConfigMissingToken(t *testing.T) {
	clearEnv(t)

	_, err := buildConfig(newRootCmd(), &options{envDir: t.TempDir()})
	var exit *exitError
	if !errors.As(err, &exit) {
		t.Fatalf("expected exitError, got %v", err)
	}
	if exit.code != 1 {
		t.Errorf("code=%d, want 1", exit.code)
	}
	if !errors.Is(err, config.ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
	if !strings.Contains(exit.msg, "Usage: set GITHUB_TOKEN=") {
		t.Errorf("missing usage hint: %q", exit.msg)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("output=%q", out.String())
	}
}

func TestRootCommandEndToEnd(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_e2e")

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/enterprises/ACME/copilot/metrics/reports/enterprise-28-day/latest":
			if r.Header.Get("Authorization") != "Bearer ghp_e2e" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"report_start_day":"2025-01-01","report_end_day":"2025-01-28","download_links":["%s/files/1?sig=x","%s/files/2?sig=y"]}`, server.URL, server.URL)
		case "/enterprises/ACME/copilot/metrics/reports/users-28-day/latest":
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		case "/files/1", "/files/2":
			if r.Header.Get("Authorization") != "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, `{"part":%q}`, r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	outDir := filepath.Join(t.TempDir(), "raw")
	metricsFile := filepath.Join(t.TempDir(), "copilot.prom")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--env-dir", t.TempDir(),
		"--api-url", server.URL,
		"--enterprise", "ACME",
		"--output-dir", outDir,
		"--report-type", "enterprise-28-day",
		"--report-type", "users-28-day",
		"--metrics-file", metricsFile,
		"--archive-url", "mem://",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	parts, err := filepath.Glob(filepath.Join(outDir, "copilot_enterprise_*_part00*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("parts=%v, want 2", parts)
	}

	entries, err := pipeline.ReadManifest(filepath.Join(outDir, pipeline.ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(entries) != 1 || entries[0].ReportType != "enterprise-28-day" || entries[0].FilesCount != 2 {
		t.Fatalf("entries=%+v", entries)
	}

	metrics, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `copilot_reports_total{outcome="failed"} 1`) {
		t.Errorf("metrics textfile missing failed report counter:\n%s", metrics)
	}
}
