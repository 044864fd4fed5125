package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/handoff/core/config"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/middleware"
)

// appConfig holds process-wide settings.
type appConfig struct {
	Name     string `env:"APP_NAME" envDefault:"handoff"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	KVDriver      string `env:"KV_DRIVER" envDefault:"memory"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	CatalogSeed   bool   `env:"CATALOG_SEED" envDefault:"true"`

	AllowAnyOrigin bool `env:"WS_ALLOW_ANY_ORIGIN" envDefault:"false"`
}

const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "handoff",
		Short:         "Mobile to kiosk session handoff service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func loadAppConfig() (appConfig, *slog.Logger, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return cfg, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{logger.WithContextExtractors(middleware.RequestIDExtractor)}
	if cfg.Env == "development" {
		opts = append(opts, logger.WithDevelopment(cfg.Name))
	} else {
		opts = append(opts, logger.WithProduction(cfg.Name), logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}
