package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/core/router"
)

func TestOpenDriversRejectUnknown(t *testing.T) {
	t.Parallel()

	b := &backends{}
	err := openKV(t.Context(), appConfig{KVDriver: "etcd"}, serveConfig{}, nil, b)
	require.ErrorIs(t, err, ErrUnknownDriver)

	err = openStorage(t.Context(), appConfig{StorageDriver: "sqlite"}, serveConfig{}, nil, b)
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenMemoryDrivers(t *testing.T) {
	t.Parallel()

	b := &backends{}
	t.Cleanup(b.close)
	app := appConfig{KVDriver: driverMemory, StorageDriver: driverMemory}

	require.NoError(t, openKV(t.Context(), app, serveConfig{}, nil, b))
	require.NoError(t, openStorage(t.Context(), app, serveConfig{}, nil, b))
	assert.NotNil(t, b.kv)
	assert.NotNil(t, b.sessions)
	assert.NotNil(t, b.catalog)
	assert.Empty(t, b.checks)
	require.NoError(t, b.kv.Ping(t.Context()))
}

func TestSkipLogging(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"/ws/mobile":      true,
		"/metrics":        true,
		"/health/ready":   true,
		"/api/messages":   false,
		"/api/products/1": false,
	}
	for path, want := range tests {
		ctx := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, skipLogging(ctx), path)
	}
}
