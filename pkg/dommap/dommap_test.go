package dommap

import (
	"context"
	"testing"
	"time"

	"github.com/law-makers/dommap/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientAppliesOptions(t *testing.T) {
	c, err := NewClient(context.Background(),
		WithTimeout(5*time.Second),
		WithIdleTimeout(time.Second),
		WithHeadless(false),
		WithLogLevel("error"),
	)
	require.NoError(t, err)
	defer c.Close()

	cfg := c.app.Config
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.NetworkIdleTimeout)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestNewClientRejectsInvalidOptions(t *testing.T) {
	_, err := NewClient(context.Background(), WithTimeout(0))
	assert.Error(t, err)
}

func TestGetDomRejectsInvalidURL(t *testing.T) {
	_, err := GetDom(context.Background(), "ftp://example.com", nil)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeValidation, engine.CodeOf(err))
	assert.ErrorIs(t, err, engine.ErrInvalidURL)
}
