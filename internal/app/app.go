package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modscout/config"
	"modscout/internal/metrics"
	"modscout/internal/pipeline"
	"modscout/logger"
	"modscout/reader"
)

const (
	DefaultConfigPath = "config/config.yml"
	reportInterval    = 30 * time.Second
)

// App is what both entry points share: validated configuration, the configured
// logger and a pipeline wired to the HTTP providers.
type App struct {
	Config   *config.Config
	Log      *logger.Log
	Pipeline *pipeline.Pipeline
}

// Load reads configuration (and an optional standalone alias file), configures
// the global logger and builds the pipeline.
func Load(configPath, aliasesPath string) (*App, error) {
	log := logger.GetLogger()

	path := config.ResolvePath(configPath, DefaultConfigPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if aliasesPath != "" {
		aliases, err := config.LoadAliases(aliasesPath)
		if err != nil {
			return nil, err
		}
		cfg.Aliases = *aliases
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, fmt.Errorf("configure logger: %w", err)
	}

	if cfg.Metrics.Prometheus {
		metrics.Init()
	}

	p := pipeline.New(cfg, reader.NewCatalogReader(cfg), reader.NewMarketReader(cfg), cfg.Aliases.Locations)

	log.WithComponent("app").WithFields(logger.Fields{
		"service":     cfg.ModScout.Name,
		"version":     cfg.ModScout.Version,
		"config":      path,
		"environment": config.AppEnvironment(),
	}).Info("starting modscout")

	return &App{Config: cfg, Log: log, Pipeline: p}, nil
}

// StartTelemetry starts the periodic runtime report for log level "report" and
// CloudWatch publishing when enabled. Both stop with ctx.
func (a *App) StartTelemetry(ctx context.Context) {
	if strings.ToLower(a.Config.Logging.Level) == "report" {
		logger.StartReport(ctx, a.Log, reportInterval)
	}

	cw := a.Config.Metrics.CloudWatch
	if cw.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cw.Region,
			Namespace:       cw.Namespace,
			AccessKeyID:     cw.AccessKeyID,
			SecretAccessKey: cw.SecretAccessKey,
		})
	}
}
