package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWiresComponents(t *testing.T) {
	cfg := config.Default()
	store := auth.NewFileStore(t.TempDir())

	a, err := New(context.Background(), cfg, WithSessionStore(store))
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Same(t, store, a.Sessions)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Loader)
	assert.NotNil(t, a.Fetcher)
	assert.NotNil(t, a.Renderer)
	assert.NotNil(t, a.Extractor)
	assert.Nil(t, a.BrowserPool)
	assert.Equal(t, cfg.HTTPTimeout, a.HTTPClient.Timeout)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	cfg.JSONLog = true
	cfg.LogFile = filepath.Join(t.TempDir(), "dommap.log")

	a, err := New(context.Background(), cfg, WithSessionStore(auth.NewFileStore(t.TempDir())))
	require.NoError(t, err)

	log.Info().Str("probe", "written").Msg("hello")
	require.NoError(t, a.Close(context.Background()))

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"probe":"written"`)
}

func TestEnsureBrowserPoolHonoursContext(t *testing.T) {
	a, err := New(context.Background(), config.Default(), WithSessionStore(auth.NewFileStore(t.TempDir())))
	require.NoError(t, err)
	defer a.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.EnsureBrowserPool(ctx), context.Canceled)
	assert.Nil(t, a.BrowserPool)
}
