// Package dommap fetches a page both raw and rendered in a headless browser
// and maps every stylesheet declaration the browser applied onto the
// rendered element tree.
//
//	result, err := dommap.GetDom(ctx, "https://example.com", &models.DomOptions{Mobile: true})
//	if err != nil {
//		return err
//	}
//	for _, sheet := range result.Stylesheets {
//		fmt.Println(sheet.SourceID)
//	}
package dommap

import (
	"context"
	"time"

	"github.com/law-makers/dommap/internal/app"
	"github.com/law-makers/dommap/internal/config"
	"github.com/law-makers/dommap/pkg/models"
)

// Option adjusts a Client's configuration.
type Option func(*config.Config)

// WithTimeout bounds each GetDom call, both fetches included.
func WithTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.HTTPTimeout = d }
}

// WithIdleTimeout sets how long the renderer waits for the page's network to go idle.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.NetworkIdleTimeout = d }
}

// WithChromePath selects the browser executable.
func WithChromePath(path string) Option {
	return func(c *config.Config) { c.ChromePath = path }
}

// WithHeadless toggles headless mode. Browsers are headless by default.
func WithHeadless(headless bool) Option {
	return func(c *config.Config) { c.BrowserHeadless = headless }
}

// WithLogLevel sets the zerolog level ("debug", "info", "warn", ...).
func WithLogLevel(level string) Option {
	return func(c *config.Config) { c.LogLevel = level }
}

// Client holds the HTTP client, stylesheet cache and browser settings shared
// by GetDom calls. It is safe for concurrent use.
type Client struct {
	app *app.Application
}

// NewClient creates a Client. No browser is started until the first call.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{app: a}, nil
}

// GetDom fetches url raw and rendered and returns both trees together with
// every stylesheet that applied. opts may be nil.
func (c *Client) GetDom(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	return c.app.Extractor.GetDom(ctx, url, opts)
}

// Close releases the client's resources.
func (c *Client) Close() error {
	return c.app.Close(context.Background())
}

// GetDom runs a single extraction with a throwaway Client.
func GetDom(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	c, err := NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetDom(ctx, url, opts)
}
