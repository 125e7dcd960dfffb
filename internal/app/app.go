// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/cache"
	"github.com/law-makers/dommap/internal/config"
	"github.com/law-makers/dommap/internal/css"
	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/internal/engine/dynamic"
	"github.com/law-makers/dommap/internal/engine/static"
	"github.com/law-makers/dommap/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	BrowserPool *dynamic.BrowserPool
	poolMu      sync.Mutex
	RateLimiter ratelimit.RateLimiter
	HTTPClient  *http.Client
	Sessions    *auth.Store
	Fetcher     *static.Fetcher
	Renderer    *dynamic.Renderer
	Loader      *css.Loader
	Extractor   *engine.Extractor
	logFile     io.Closer
	startTime   time.Time
}

// Option customises New.
type Option func(*Application)

// WithSessionStore replaces the default keyring/file session store.
func WithSessionStore(s *auth.Store) Option {
	return func(a *Application) { a.Sessions = s }
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures the global zerolog logger (console or JSON, optional rotating file)
//   - Creates the parsed-stylesheet cache and loader
//   - Creates the per-host rate limiter and HTTP client for the raw fetch
//   - Creates the renderer without a browser pool (see EnsureBrowserPool)
//   - Creates the extractor combining both fetches
//
// No browser is started here.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Str("log_file", cfg.LogFile).
		Str("config_file", cfg.Source).
		Msg("Logger initialized")

	a := &Application{
		Config:    cfg,
		Logger:    &logger,
		logFile:   logFile,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Sessions == nil {
		a.Sessions = auth.DefaultStore()
	}
	logger.Debug().Str("backend", a.Sessions.Backend()).Msg("Session store ready")

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes, cfg.CacheTTL)
	a.Cache = memCache
	a.Loader = css.NewLoader(memCache, cfg.CacheTTL)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Dur("ttl", cfg.CacheTTL).
		Msg("Stylesheet cache initialized")

	a.RateLimiter = ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	a.HTTPClient = &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	a.Fetcher = static.New(a.RateLimiter, a.HTTPClient, a.Sessions, cfg.HTTPTimeout)

	// The pool is attached later, only for batch runs
	a.Renderer = dynamic.New(nil, dynamic.Options{
		Allocator: dynamic.AllocatorOptions{
			Headless:   cfg.BrowserHeadless,
			ChromePath: cfg.ChromePath,
		},
		Sessions:    a.Sessions,
		Timeout:     cfg.HTTPTimeout,
		IdleTimeout: cfg.NetworkIdleTimeout,
	})

	a.Extractor = engine.NewExtractor(a.Fetcher, a.Renderer, a.Loader)
	logger.Debug().
		Str("fetcher", a.Fetcher.Name()).
		Str("renderer", a.Renderer.Name()).
		Msg("Extractor initialized")

	logger.Info().Msg("Application initialized successfully")
	return a, nil
}

// newLogger builds the process logger and installs it as the global one.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer
	if cfg.JSONLog {
		console = os.Stderr
	} else {
		console = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Kitchen
		})
	}

	writer := console
	var closer io.Closer
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    config.DefaultLogMaxSizeMB,
			MaxBackups: config.DefaultLogMaxBackups,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// EnsureBrowserPool lazily creates the browser pool if it has not already been
// initialized. Callers should provide a context with an appropriate timeout.
func (a *Application) EnsureBrowserPool(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := a.Logger
	logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := dynamic.NewBrowserPool(dynamic.BrowserPoolOptions{
		Size: a.Config.BrowserPoolSize,
		AllocatorOptions: dynamic.AllocatorOptions{
			Headless:   a.Config.BrowserHeadless,
			ChromePath: a.Config.ChromePath,
			Proxy:      a.Config.Proxy,
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create browser pool on demand")
		return err
	}

	a.BrowserPool = pool
	a.Renderer.SetBrowserPool(pool)

	logger.Info().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return nil
}

// Close gracefully shuts down the application and all its resources.
//
// It closes the browser pool, the cache, idle HTTP connections and the log
// file, in that order. Errors are logged and do not stop later steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.poolMu.Lock()
	if a.BrowserPool != nil {
		if err := a.BrowserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
		a.BrowserPool = nil
		a.Renderer.SetBrowserPool(nil)
	}
	a.poolMu.Unlock()

	if a.Cache != nil {
		a.Cache.Close()
	}

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")

	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
