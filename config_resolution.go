package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/posthog/pggensql/exporter"
	"github.com/posthog/pggensql/source"
)

// FileConfig represents the YAML configuration file structure
type FileConfig struct {
	DatabaseURL         string `yaml:"database_url"`
	Query               string `yaml:"query"`
	Table               string `yaml:"table"`
	QuoteIdentifiers    *bool  `yaml:"quote_identifiers"`
	BatchSize           int    `yaml:"batch_size"`
	OnError             string `yaml:"on_error"` // "abort" or "skip"
	Workers             int    `yaml:"workers"`
	LogLevel            string `yaml:"log_level"`
	MetricsAddr         string `yaml:"metrics_addr"`  // e.g., ":9090"
	OTLPEndpoint        string `yaml:"otlp_endpoint"` // e.g., "http://localhost:4318"
	ConnectRetries      int    `yaml:"connect_retries"`
	OnConflictDoNothing *bool  `yaml:"on_conflict_do_nothing"`
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

type configCLIInputs struct {
	// Set holds the names of the flags given on the command line. The
	// positional arguments are recorded as "database-url" and "query".
	Set map[string]bool

	DatabaseURL         string
	Query               string
	Table               string
	QuoteIdentifiers    bool
	BatchSize           int
	OnError             string
	Workers             int
	LogLevel            string
	MetricsAddr         string
	OTLPEndpoint        string
	ConnectRetries      int
	OnConflictDoNothing bool
}

type resolvedConfig struct {
	Source       source.Config
	Export       exporter.Options
	OnError      string
	LogLevel     slog.Level
	MetricsAddr  string
	OTLPEndpoint string
}

const defaultConnectRetries = 3

func defaultConfig() resolvedConfig {
	return resolvedConfig{
		Source: source.Config{ConnectRetries: defaultConnectRetries},
		Export: exporter.Options{
			Writer: exporter.WriterOptions{Table: exporter.DefaultTable},
		},
		OnError:  string(exporter.Abort),
		LogLevel: slog.LevelInfo,
	}
}

func resolveEffectiveConfig(fileCfg *FileConfig, cli configCLIInputs, getenv func(string) string, warn func(string)) resolvedConfig {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if warn == nil {
		warn = func(string) {}
	}
	if cli.Set == nil {
		cli.Set = map[string]bool{}
	}

	cfg := defaultConfig()
	logLevel := ""

	if fileCfg != nil {
		if fileCfg.DatabaseURL != "" {
			cfg.Source.URL = fileCfg.DatabaseURL
		}
		if fileCfg.Query != "" {
			cfg.Export.Query = fileCfg.Query
		}
		if fileCfg.Table != "" {
			cfg.Export.Writer.Table = fileCfg.Table
		}
		if fileCfg.QuoteIdentifiers != nil {
			cfg.Export.Writer.QuoteIdentifiers = *fileCfg.QuoteIdentifiers
		}
		if fileCfg.BatchSize != 0 {
			cfg.Export.Writer.BatchSize = fileCfg.BatchSize
		}
		if fileCfg.OnError != "" {
			cfg.OnError = fileCfg.OnError
		}
		if fileCfg.Workers != 0 {
			cfg.Export.Workers = fileCfg.Workers
		}
		if fileCfg.LogLevel != "" {
			logLevel = fileCfg.LogLevel
		}
		if fileCfg.MetricsAddr != "" {
			cfg.MetricsAddr = fileCfg.MetricsAddr
		}
		if fileCfg.OTLPEndpoint != "" {
			cfg.OTLPEndpoint = fileCfg.OTLPEndpoint
		}
		if fileCfg.ConnectRetries != 0 {
			cfg.Source.ConnectRetries = fileCfg.ConnectRetries
		}
		if fileCfg.OnConflictDoNothing != nil {
			cfg.Export.Writer.OnConflictDoNothing = *fileCfg.OnConflictDoNothing
		}
	}

	if v := getenv("PGGENSQL_DATABASE_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := getenv("PGGENSQL_QUERY"); v != "" {
		cfg.Export.Query = v
	}
	if v := getenv("PGGENSQL_TABLE"); v != "" {
		cfg.Export.Writer.Table = v
	}
	if v := getenv("PGGENSQL_QUOTE_IDENTIFIERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Export.Writer.QuoteIdentifiers = b
		} else {
			warn("Invalid PGGENSQL_QUOTE_IDENTIFIERS: " + err.Error())
		}
	}
	if v := getenv("PGGENSQL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.Writer.BatchSize = n
		} else {
			warn("Invalid PGGENSQL_BATCH_SIZE: " + err.Error())
		}
	}
	if v := getenv("PGGENSQL_ON_ERROR"); v != "" {
		cfg.OnError = v
	}
	if v := getenv("PGGENSQL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.Workers = n
		} else {
			warn("Invalid PGGENSQL_WORKERS: " + err.Error())
		}
	}
	if v := getenv("PGGENSQL_LOG_LEVEL"); v != "" {
		logLevel = v
	}
	if v := getenv("PGGENSQL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := getenv("PGGENSQL_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := getenv("PGGENSQL_CONNECT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.ConnectRetries = n
		} else {
			warn("Invalid PGGENSQL_CONNECT_RETRIES: " + err.Error())
		}
	}
	if v := getenv("PGGENSQL_ON_CONFLICT_DO_NOTHING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Export.Writer.OnConflictDoNothing = b
		} else {
			warn("Invalid PGGENSQL_ON_CONFLICT_DO_NOTHING: " + err.Error())
		}
	}

	if cli.Set["database-url"] {
		cfg.Source.URL = cli.DatabaseURL
	}
	if cli.Set["query"] {
		cfg.Export.Query = cli.Query
	}
	if cli.Set["table"] {
		cfg.Export.Writer.Table = cli.Table
	}
	if cli.Set["quote-identifiers"] {
		cfg.Export.Writer.QuoteIdentifiers = cli.QuoteIdentifiers
	}
	if cli.Set["batch-size"] {
		cfg.Export.Writer.BatchSize = cli.BatchSize
	}
	if cli.Set["on-error"] {
		cfg.OnError = cli.OnError
	}
	if cli.Set["workers"] {
		cfg.Export.Workers = cli.Workers
	}
	if cli.Set["log-level"] {
		logLevel = cli.LogLevel
	}
	if cli.Set["metrics-addr"] {
		cfg.MetricsAddr = cli.MetricsAddr
	}
	if cli.Set["otlp-endpoint"] {
		cfg.OTLPEndpoint = cli.OTLPEndpoint
	}
	if cli.Set["connect-retries"] {
		cfg.Source.ConnectRetries = cli.ConnectRetries
	}
	if cli.Set["on-conflict-do-nothing"] {
		cfg.Export.Writer.OnConflictDoNothing = cli.OnConflictDoNothing
	}

	if logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			cfg.LogLevel = level
		} else {
			warn("Invalid log_level: " + logLevel + " (expected debug, info, warn or error)")
		}
	}

	if policy, err := exporter.ParseErrorPolicy(strings.ToLower(cfg.OnError)); err == nil {
		cfg.Export.OnError = policy
	}

	return cfg
}

// validate reports settings that make an export impossible.
func (c resolvedConfig) validate() error {
	var errs []error
	if c.Source.URL == "" {
		errs = append(errs, errors.New("database URL is required (argument DB_URL, database_url or PGGENSQL_DATABASE_URL)"))
	}
	if strings.TrimSpace(c.Export.Query) == "" {
		errs = append(errs, errors.New("query is required (argument SQL, query or PGGENSQL_QUERY)"))
	}
	if _, err := exporter.ParseErrorPolicy(strings.ToLower(c.OnError)); err != nil {
		errs = append(errs, err)
	}
	if c.Export.Writer.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size must not be negative, got %d", c.Export.Writer.BatchSize))
	}
	if c.Export.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Export.Workers))
	}
	if c.Source.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connect_retries must not be negative, got %d", c.Source.ConnectRetries))
	}
	return errors.Join(errs...)
}
