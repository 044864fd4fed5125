package sweeper

import "time"

// Config holds sweeper settings.
type Config struct {
	Interval        time.Duration `env:"SWEEPER_INTERVAL" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SWEEPER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}
