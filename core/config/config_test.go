package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/core/config"
)

type sweepConfig struct {
	Interval time.Duration `env:"CONFIG_TEST_SWEEP_INTERVAL" envDefault:"60s"`
	Prefix   string        `env:"CONFIG_TEST_PREFIX" envDefault:"transfer:token:"`
}

type requiredConfig struct {
	Secret string `env:"CONFIG_TEST_REQUIRED_SECRET,required"`
}

func TestLoadDefaultsAndCache(t *testing.T) {
	t.Setenv("CONFIG_TEST_SWEEP_INTERVAL", "5s")

	var first sweepConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, 5*time.Second, first.Interval)
	assert.Equal(t, "transfer:token:", first.Prefix)

	t.Setenv("CONFIG_TEST_SWEEP_INTERVAL", "10s")

	var second sweepConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second, "second load must come from the cache")
}

func TestLoadRequiredMissing(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.Panics(t, func() { config.MustLoad(&requiredConfig{}) })
}
