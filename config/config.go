package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultReportTypes are the report kinds fetched when none are configured.
var DefaultReportTypes = []string{"enterprise-28-day", "users-28-day"}

// Config holds downloader configuration.
type Config struct {
	BaseURL     string        `yaml:"api_url"`
	Enterprise  string        `yaml:"enterprise"`
	Token       string        `yaml:"token"`
	OutputDir   string        `yaml:"output_dir"`
	ReportTypes []string      `yaml:"report_types"`
	APIVersion  string        `yaml:"api_version"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	Verbose     bool          `yaml:"verbose"`
	MetricsFile string        `yaml:"metrics_file"`
	ArchiveURL  string        `yaml:"archive_url"`
}

// DefaultConfig returns the defaults of the CRIF enterprise deployment.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.crifgroup.ghe.com",
		Enterprise:  "CRIFGROUP",
		OutputDir:   "APP/data/raw",
		ReportTypes: append([]string(nil), DefaultReportTypes...),
		APIVersion:  "2022-11-28",
		Timeout:     0,
		UserAgent:   "copilot-metrics",
	}
}

// yamlConfig mirrors Config with a string timeout.
type yamlConfig struct {
	BaseURL     string   `yaml:"api_url"`
	Enterprise  string   `yaml:"enterprise"`
	Token       string   `yaml:"token"`
	OutputDir   string   `yaml:"output_dir"`
	ReportTypes []string `yaml:"report_types"`
	APIVersion  string   `yaml:"api_version"`
	Timeout     string   `yaml:"timeout"`
	UserAgent   string   `yaml:"user_agent"`
	Verbose     bool     `yaml:"verbose"`
	MetricsFile string   `yaml:"metrics_file"`
	ArchiveURL  string   `yaml:"archive_url"`
}

// LoadFromFile applies the values of a YAML file on top of c.
// Keys missing from the file keep their current value.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if yc.BaseURL != "" {
		c.BaseURL = yc.BaseURL
	}
	if yc.Enterprise != "" {
		c.Enterprise = yc.Enterprise
	}
	if yc.Token != "" {
		c.Token = yc.Token
	}
	if yc.OutputDir != "" {
		c.OutputDir = yc.OutputDir
	}
	if len(yc.ReportTypes) > 0 {
		c.ReportTypes = yc.ReportTypes
	}
	if yc.APIVersion != "" {
		c.APIVersion = yc.APIVersion
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		c.Timeout = d
	}
	if yc.UserAgent != "" {
		c.UserAgent = yc.UserAgent
	}
	if yc.Verbose {
		c.Verbose = true
	}
	if yc.MetricsFile != "" {
		c.MetricsFile = yc.MetricsFile
	}
	if yc.ArchiveURL != "" {
		c.ArchiveURL = yc.ArchiveURL
	}
	return nil
}

// LoadFromEnv applies environment overrides on top of c.
func (c *Config) LoadFromEnv() error {
	if v, ok := EnvString("GITHUB_API_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString("GITHUB_ENTERPRISE"); ok {
		c.Enterprise = v
	}
	if v, ok := EnvString("GITHUB_TOKEN"); ok {
		c.Token = v
	}
	if v, ok := EnvString("RAW_DATA_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := EnvList("COPILOT_REPORT_TYPES"); ok {
		c.ReportTypes = v
	}
	if v, ok := EnvString("GITHUB_API_VERSION"); ok {
		c.APIVersion = v
	}
	if v, ok, err := EnvDuration("COPILOT_HTTP_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid COPILOT_HTTP_TIMEOUT: %w", err)
	} else if ok {
		c.Timeout = v
	}
	if v, ok := EnvString("COPILOT_USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok, err := EnvBool("COPILOT_VERBOSE"); err != nil {
		return fmt.Errorf("invalid COPILOT_VERBOSE: %w", err)
	} else if ok {
		c.Verbose = v
	}
	if v, ok := EnvString("COPILOT_METRICS_FILE"); ok {
		c.MetricsFile = v
	}
	if v, ok := EnvString("COPILOT_ARCHIVE_URL"); ok {
		c.ArchiveURL = v
	}
	return nil
}

// ErrMissingToken is returned by Validate when no access token is configured.
var ErrMissingToken = errors.New("GITHUB_TOKEN environment variable not set")

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a scheme and host")
	}

	if strings.TrimSpace(c.Enterprise) == "" {
		return fmt.Errorf("enterprise cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if len(c.ReportTypes) == 0 {
		return fmt.Errorf("at least one report type is required")
	}
	for i, rt := range c.ReportTypes {
		if strings.TrimSpace(rt) == "" {
			return fmt.Errorf("report type %d cannot be empty", i+1)
		}
	}
	if c.APIVersion == "" {
		return fmt.Errorf("api version cannot be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// APIBaseURL returns BaseURL without trailing slashes.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}
