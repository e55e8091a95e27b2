package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/copilot-metrics/client"
	"github.com/aluiziolira/copilot-metrics/config"
	"github.com/aluiziolira/copilot-metrics/pipeline"
)

const missingTokenHint = "Error: GITHUB_TOKEN environment variable not set\nUsage: set GITHUB_TOKEN=your_token_here"

type options struct {
	configFile  string
	envDir      string
	apiURL      string
	enterprise  string
	outputDir   string
	reportTypes []string
	apiVersion  string
	timeout     time.Duration
	verbose     bool
	metricsFile string
	archiveURL  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "copilot-metrics",
		Short:         "Download the latest Copilot usage-metrics reports of an enterprise",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&opts.envDir, "env-dir", ".", "Directory holding .env files")
	flags.StringVar(&opts.apiURL, "api-url", "", "GitHub Enterprise API base URL")
	flags.StringVar(&opts.enterprise, "enterprise", "", "Enterprise slug")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory receiving report files and metadata.json")
	flags.StringSliceVar(&opts.reportTypes, "report-type", nil, "Report type to download (repeatable)")
	flags.StringVar(&opts.apiVersion, "api-version", "", "Value of the X-GitHub-Api-Version header")
	flags.DurationVar(&opts.timeout, "timeout", 0, "HTTP timeout per request (0 keeps the client default)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	flags.StringVar(&opts.archiveURL, "archive-url", "", "Blob bucket URL mirroring downloaded files (file://, s3://, mem://)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "copilot-metrics %s\n", version)
		},
	})

	return cmd
}

// buildConfig layers defaults, the YAML file, .env files, the environment and
// explicitly set flags, then validates the result.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.UserAgent = "copilot-metrics/" + version

	if opts.configFile != "" {
		if err := cfg.LoadFromFile(opts.configFile); err != nil {
			return nil, &exitError{code: 1, err: err, msg: fmt.Sprintf("Error: %v", err)}
		}
	}
	if err := config.LoadEnvFiles(opts.envDir); err != nil {
		return nil, &exitError{code: 1, err: err, msg: fmt.Sprintf("Error: %v", err)}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, &exitError{code: 1, err: err, msg: fmt.Sprintf("Error: %v", err)}
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.BaseURL = opts.apiURL
	}
	if flags.Changed("enterprise") {
		cfg.Enterprise = opts.enterprise
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("report-type") {
		cfg.ReportTypes = opts.reportTypes
	}
	if flags.Changed("api-version") {
		cfg.APIVersion = opts.apiVersion
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if flags.Changed("archive-url") {
		cfg.ArchiveURL = opts.archiveURL
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			return nil, &exitError{code: 1, err: err, msg: missingTokenHint}
		}
		return nil, &exitError{code: 1, err: err, msg: fmt.Sprintf("Error: invalid configuration: %v", err)}
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	runID := uuid.NewString()
	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", runID))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := client.NewMetrics()
	resolver, err := client.NewResolver(cfg, metrics)
	if err != nil {
		slog.Error("initialising resolver", slog.Any("error", err))
		return &exitError{code: 1, err: err}
	}
	fetcher := client.NewFetcher(cfg, metrics)

	coordOpts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
		pipeline.WithRunID(runID),
	}
	if cfg.ArchiveURL != "" {
		archive, err := pipeline.OpenArchive(ctx, cfg.ArchiveURL, runID)
		if err != nil {
			slog.Warn("archive disabled", slog.String("url", cfg.ArchiveURL), slog.Any("error", err))
		} else {
			defer func() {
				if err := archive.Close(); err != nil {
					slog.Warn("close archive", slog.Any("error", err))
				}
			}()
			coordOpts = append(coordOpts, pipeline.WithArchive(archive))
		}
	}

	slog.Info("starting download",
		slog.String("api_url", cfg.APIBaseURL()),
		slog.String("enterprise", cfg.Enterprise),
		slog.String("output_dir", cfg.OutputDir),
		slog.Any("report_types", cfg.ReportTypes),
	)

	coord := pipeline.NewCoordinator(resolver, fetcher, coordOpts...)
	result, runErr := coord.Run(ctx, cfg.ReportTypes, cfg.OutputDir)

	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		slog.Warn("metrics textfile not written", slog.Any("error", err))
	}

	if runErr != nil {
		slog.Error("run failed", slog.Any("error", runErr))
		return &exitError{code: 1, err: runErr}
	}

	printSummary(os.Stdout, result)
	return nil
}
