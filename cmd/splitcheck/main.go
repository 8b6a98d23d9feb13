// Package main provides the entry point for the splitcheck dataset checker.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TFMV/splitcheck/cmd/splitcheck/config"
	"github.com/TFMV/splitcheck/pkg/hub"
	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/infrastructure/memory"
	"github.com/TFMV/splitcheck/pkg/infrastructure/metrics"
	"github.com/TFMV/splitcheck/pkg/models"
	"github.com/TFMV/splitcheck/pkg/profile"
	"github.com/TFMV/splitcheck/pkg/report"
	"github.com/TFMV/splitcheck/pkg/repositories/duckdb"
	"github.com/TFMV/splitcheck/pkg/services"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "splitcheck",
	Short: "Dataset split checker",
	Long: `Load every split of a hub dataset at a pinned revision, print
diagnostics for each, and verify that all splits share the same columns.`,
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check [dataset]",
	Short: "Load and check the splits of a dataset",
	Long: `Load and check the splits of a dataset.

Example:
  splitcheck check acme/reviews --revision v1.0
  splitcheck check --config ./splitcheck.yaml --engine duckdb`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"config":           "config",
	"revision":         "revision",
	"splits":           "splits",
	"engine":           "engine",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"head-rows":        "head_rows",
	"metrics-textfile": "metrics.textfile",
	"hub-endpoint":     "hub.endpoint",
	"timeout":          "hub.timeout",
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addCheckFlags(checkCmd.Flags())

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("splitcheck\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func addCheckFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file path")
	fs.StringP("revision", "r", models.DefaultRevision, "dataset revision (tag, branch, or commit)")
	fs.StringSlice("splits", []string{"train", "validation", "test"}, "splits to check, in order")
	fs.String("engine", config.EngineMemory, "profiling engine (memory, duckdb)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "console", "log format (console, json)")
	fs.Int("head-rows", services.DefaultHeadRows, "rows shown in the table preview")
	fs.Bool("no-color", false, "disable colored output")
	fs.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	fs.String("hub-endpoint", hub.DefaultEndpoint, "dataset hub endpoint")
	fs.Duration("timeout", hub.DefaultTimeout, "hub request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("dataset", cfg.Dataset).
		Str("revision", cfg.Revision).
		Strs("splits", cfg.Splits).
		Str("engine", cfg.Engine).
		Msg("Starting splitcheck")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		collector  metrics.Collector = metrics.NewNoOpCollector()
		prometheus *metrics.PrometheusCollector
	)
	if cfg.Metrics.Enabled {
		prometheus = metrics.NewPrometheusCollector()
		collector = prometheus
	}

	alloc := memory.NewTrackedAllocator(arrowmem.NewGoAllocator())
	types := converter.New(logger)

	profiler, closeProfiler, err := newProfiler(cfg, types, logger)
	if err != nil {
		return err
	}
	defer closeProfiler()

	client := hub.NewClient(hub.ClientConfig{
		Endpoint:        cfg.Hub.Endpoint,
		Token:           cfg.Hub.Token,
		Timeout:         cfg.Hub.Timeout,
		MaxFileSize:     cfg.Hub.MaxFileSize,
		ListingCacheTTL: cfg.Hub.ListingCacheTTL,
	}, logger)
	defer client.Close()

	provider := hub.NewHubProvider(client, converter.NewDecoder(alloc, logger), logger)
	sink := report.NewConsoleSink(os.Stdout, cfg.Color && !color.NoColor)

	loader := services.NewLoader(provider, types, profiler, sink, collector, logger,
		services.WithHeadRows(cfg.HeadRows),
		services.WithAllocator(alloc),
	)
	runner := services.NewRunner(loader, sink, collector, logger)

	start := time.Now()
	summary := runner.Run(ctx, cfg.Dataset, cfg.Revision, models.ParseSplits(cfg.Splits))

	logger.Info().
		Str("run_id", summary.RunID).
		Bool("all_succeeded", summary.AllSucceeded()).
		Int64("peak_arrow_bytes", alloc.PeakBytes()).
		Dur("duration", time.Since(start)).
		Msg("Run complete")

	if prometheus != nil && cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
		}
	}
	return nil
}

func newProfiler(cfg *config.Config, types converter.TypeConverter, logger zerolog.Logger) (profile.Profiler, func(), error) {
	if cfg.Engine != config.EngineDuckDB {
		return profile.NewMemoryProfiler(), func() {}, nil
	}
	p, err := duckdb.NewProfiler("", types, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start duckdb profiler: %w", err)
	}
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close duckdb profiler")
		}
	}, nil
}

// loadConfig merges defaults, the config file, SPLITCHECK_* environment
// variables, and flags, in increasing precedence.
func loadConfig(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	v.SetEnvPrefix("SPLITCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if len(args) > 0 {
		v.Set("dataset", args[0])
	}
	if noColor, _ := flags.GetBool("no-color"); noColor {
		v.Set("color", false)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if cfg.Hub.Token == "" {
		cfg.Hub.Token = os.Getenv("HF_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level, format string, out io.Writer) zerolog.Logger {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		// Enable caller info for debug level
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "splitcheck")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
