package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/posthog/pggensql/exporter"
	"github.com/posthog/pggensql/source"
)

var version = "dev"

func main() {
	cmd := newRootCmd(os.Getenv)
	if err := cmd.Execute(); err != nil {
		slog.Error("Export failed.", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	var (
		configFile string
		output     string
		cli        configCLIInputs
	)

	cmd := &cobra.Command{
		Use:   "pggensql [flags] DB_URL SQL",
		Short: "Generate INSERT statements from the result of a PostgreSQL query",
		Long: "Runs SQL against the database at DB_URL and writes the result as INSERT statements.\n\n" +
			"Precedence: CLI flags > environment variables (PGGENSQL_*) > config file > defaults",
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Set = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				cli.Set[f.Name] = true
			})
			if len(args) > 0 {
				cli.DatabaseURL = args[0]
				cli.Set["database-url"] = true
			}
			if len(args) > 1 {
				cli.Query = args[1]
				cli.Set["query"] = true
			}

			if configFile == "" {
				configFile = getenv("PGGENSQL_CONFIG")
			}
			var fileCfg *FileConfig
			if configFile != "" {
				var err error
				fileCfg, err = loadConfigFile(configFile)
				if err != nil {
					return fmt.Errorf("failed to load config file: %w", err)
				}
			}

			var warnings []string
			cfg := resolveEffectiveConfig(fileCfg, cli, getenv, func(msg string) {
				warnings = append(warnings, msg)
			})

			shutdownLogging := initLogging(cfg.LogLevel, cfg.OTLPEndpoint)
			defer shutdownLogging()
			for _, w := range warnings {
				slog.Warn(w)
			}
			if configFile != "" {
				slog.Debug("Loaded configuration.", "path", configFile)
			}

			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, output, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "Path to YAML config file (env: PGGENSQL_CONFIG)")
	f.StringVar(&cli.Table, "table", exporter.DefaultTable, "Target table name (env: PGGENSQL_TABLE)")
	f.BoolVar(&cli.QuoteIdentifiers, "quote-identifiers", false, "Quote table and column names (env: PGGENSQL_QUOTE_IDENTIFIERS)")
	f.IntVar(&cli.BatchSize, "batch-size", 0, "Rows per INSERT statement, 0 for a single statement (env: PGGENSQL_BATCH_SIZE)")
	f.StringVar(&cli.OnError, "on-error", string(exporter.Abort), "What to do with rows that cannot be serialized: abort or skip (env: PGGENSQL_ON_ERROR)")
	f.IntVar(&cli.Workers, "workers", 0, "Rows serialized concurrently, 0 for the number of CPUs (env: PGGENSQL_WORKERS)")
	f.StringVar(&cli.LogLevel, "log-level", "info", "Log level: debug, info, warn or error (env: PGGENSQL_LOG_LEVEL)")
	f.StringVar(&cli.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the export (env: PGGENSQL_METRICS_ADDR)")
	f.StringVar(&cli.OTLPEndpoint, "otlp-endpoint", "", "OTLP HTTP endpoint for logs and traces (env: PGGENSQL_OTLP_ENDPOINT)")
	f.IntVar(&cli.ConnectRetries, "connect-retries", defaultConnectRetries, "Connection attempts before giving up (env: PGGENSQL_CONNECT_RETRIES)")
	f.BoolVar(&cli.OnConflictDoNothing, "on-conflict-do-nothing", false, "Append ON CONFLICT DO NOTHING to every statement (env: PGGENSQL_ON_CONFLICT_DO_NOTHING)")
	f.StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

// run connects, exports, and writes the statements to output (or stdout
// when output is empty or "-").
func run(ctx context.Context, cfg resolvedConfig, output string, stdout io.Writer) (err error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(cfg.OTLPEndpoint)
	defer shutdownTracing()

	if cfg.MetricsAddr != "" {
		ms, err := exporter.StartMetricsServer(cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Shutdown(shutdownCtx)
		}()
	}

	src, err := source.Connect(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(context.Background()); cerr != nil {
			slog.Warn("Failed to close database connection.", "error", cerr)
		}
	}()

	out := stdout
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", cerr)
			}
		}()
		out = f
	}

	stats, err := exporter.New(cfg.Export).Run(ctx, src, out)
	if err != nil {
		return err
	}
	slog.Debug("Export statistics.", "columns", stats.Columns, "rows", stats.Rows, "skipped", stats.Skipped, "duration", stats.Duration)
	return nil
}
