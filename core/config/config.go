// Package config loads typed configuration from the environment. A .env file
// in the working directory is read once on first use; each config type is
// parsed once and cached.
//
//	var cfg transfer.Config
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig wraps failures from the env parser.
var ErrParsingConfig = errors.New("failed to parse config from environment")

var (
	dotenvOnce sync.Once
	cache      sync.Map
)

// Load fills cfg from the environment, reusing the cached value for T.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		// missing .env is the normal case in containers
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if v, ok := cache.Load(key); ok {
		*cfg = v.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	actual, _ := cache.LoadOrStore(key, parsed)
	*cfg = actual.(T)
	return nil
}

// MustLoad is Load that panics on error, for use during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
