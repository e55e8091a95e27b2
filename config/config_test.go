package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Token = "ghp_test"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "missing scheme",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "api.github.com"
			},
			wantErr: "base URL",
		},
		{
			name: "empty enterprise",
			mutate: func(cfg *Config) {
				cfg.Enterprise = " "
			},
			wantErr: "enterprise",
		},
		{
			name: "empty output dir",
			mutate: func(cfg *Config) {
				cfg.OutputDir = ""
			},
			wantErr: "output directory",
		},
		{
			name: "no report types",
			mutate: func(cfg *Config) {
				cfg.ReportTypes = nil
			},
			wantErr: "report type",
		},
		{
			name: "blank report type",
			mutate: func(cfg *Config) {
				cfg.ReportTypes = []string{"enterprise-28-day", ""}
			},
			wantErr: "report type 2",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "empty api version",
			mutate: func(cfg *Config) {
				cfg.APIVersion = ""
			},
			wantErr: "api version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateMissingToken(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestDefaultConfigValidWithToken(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with token should validate, got %v", err)
	}
}

func TestDefaultReportTypesNotShared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReportTypes[0] = "changed"
	if DefaultReportTypes[0] != "enterprise-28-day" {
		t.Fatalf("DefaultConfig must copy the default report types")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GITHUB_API_URL", "https://api.example.test")
	t.Setenv("GITHUB_ENTERPRISE", "ACME")
	t.Setenv("GITHUB_TOKEN", "secret")
	t.Setenv("RAW_DATA_DIR", "/tmp/raw")
	t.Setenv("COPILOT_REPORT_TYPES", "users-28-day, ,enterprise-28-day")
	t.Setenv("COPILOT_HTTP_TIMEOUT", "45s")
	t.Setenv("COPILOT_VERBOSE", "true")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.BaseURL != "https://api.example.test" {
		t.Errorf("BaseURL=%q", cfg.BaseURL)
	}
	if cfg.Enterprise != "ACME" {
		t.Errorf("Enterprise=%q", cfg.Enterprise)
	}
	if cfg.Token != "secret" {
		t.Errorf("Token=%q", cfg.Token)
	}
	if cfg.OutputDir != "/tmp/raw" {
		t.Errorf("OutputDir=%q", cfg.OutputDir)
	}
	if len(cfg.ReportTypes) != 2 || cfg.ReportTypes[0] != "users-28-day" || cfg.ReportTypes[1] != "enterprise-28-day" {
		t.Errorf("ReportTypes=%v", cfg.ReportTypes)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout=%v", cfg.Timeout)
	}
	if !cfg.Verbose {
		t.Error("expected verbose")
	}
}

func TestLoadFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("COPILOT_HTTP_TIMEOUT", "soon")
	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadFromFile(t *testing.T) {
	yamlContent := `
api_url: https://ghe.example.test/api/v3
enterprise: EXAMPLE
output_dir: data/raw
report_types:
  - enterprise-28-day
timeout: 2m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.APIBaseURL() != "https://ghe.example.test/api/v3" {
		t.Errorf("BaseURL=%q", cfg.BaseURL)
	}
	if cfg.Enterprise != "EXAMPLE" {
		t.Errorf("Enterprise=%q", cfg.Enterprise)
	}
	if len(cfg.ReportTypes) != 1 {
		t.Errorf("ReportTypes=%v", cfg.ReportTypes)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout=%v", cfg.Timeout)
	}
	if cfg.APIVersion != "2022-11-28" {
		t.Errorf("APIVersion should keep default, got %q", cfg.APIVersion)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("invalid: [yaml: content"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	if err := DefaultConfig().LoadFromFile(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAPIBaseURLTrimsSlash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.example.test///"
	if got := cfg.APIBaseURL(); got != "https://api.example.test" {
		t.Fatalf("APIBaseURL()=%q", got)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GITHUB_ENTERPRISE=FROM_DOTENV\nRAW_DATA_DIR=base\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("RAW_DATA_DIR=local\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITHUB_ENTERPRISE", "")
	t.Setenv("RAW_DATA_DIR", "")
	os.Unsetenv("GITHUB_ENTERPRISE")
	os.Unsetenv("RAW_DATA_DIR")

	if err := LoadEnvFiles(dir); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if v, _ := EnvString("GITHUB_ENTERPRISE"); v != "FROM_DOTENV" {
		t.Errorf("GITHUB_ENTERPRISE=%q", v)
	}
	if v, _ := EnvString("RAW_DATA_DIR"); v != "local" {
		t.Errorf("RAW_DATA_DIR=%q, want local override", v)
	}
}
