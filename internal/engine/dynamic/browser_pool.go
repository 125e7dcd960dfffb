// internal/engine/dynamic/browser_pool.go
package dynamic

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// BrowserPool keeps a few long-lived browser processes so batch runs do not
// pay browser startup for every URL. Each render still gets its own tab in
// its own browser context.
type BrowserPool struct {
	size     int
	browsers chan *BrowserContext
	cancels  []context.CancelFunc
	mu       sync.Mutex
	closed   bool
}

// BrowserContext wraps a chromedp browser context with its cancel function
type BrowserContext struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// BrowserPoolOptions configures the browser pool
type BrowserPoolOptions struct {
	Size int
	AllocatorOptions
}

// NewBrowserPool starts opts.Size browsers (1 to 10, default 3).
func NewBrowserPool(opts BrowserPoolOptions) (*BrowserPool, error) {
	if opts.Size <= 0 {
		opts.Size = 3
	}
	if opts.Size > 10 {
		opts.Size = 10
	}

	log.Debug().Int("size", opts.Size).Msg("Creating browser pool")

	pool := &BrowserPool{
		size:     opts.Size,
		browsers: make(chan *BrowserContext, opts.Size),
	}

	allocOpts := allocatorOptions(opts.AllocatorOptions)
	for i := 0; i < opts.Size; i++ {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		pool.cancels = append(pool.cancels, browserCancel, allocCancel)

		// The first Run starts the browser process
		if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to start browser %d: %w", i, err)
		}

		pool.browsers <- &BrowserContext{Ctx: browserCtx, Cancel: browserCancel}
		log.Debug().Int("browser_id", i).Msg("Browser started")
	}

	log.Info().Int("pool_size", opts.Size).Msg("Browser pool ready")

	return pool, nil
}

// Acquire takes a browser from the pool, blocking until one is free or ctx
// is done.
func (bp *BrowserPool) Acquire(ctx context.Context) (*BrowserContext, error) {
	select {
	case bc, ok := <-bp.browsers:
		if !ok {
			return nil, fmt.Errorf("browser pool is closed")
		}
		bp.mu.Lock()
		defer bp.mu.Unlock()
		if bp.closed {
			return nil, fmt.Errorf("browser pool is closed")
		}
		log.Debug().Msg("Browser acquired from pool")
		return bc, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for a pooled browser: %w", ctx.Err())
	}
}

// Release returns a browser to the pool
func (bp *BrowserPool) Release(bc *BrowserContext) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		return
	}

	select {
	case bp.browsers <- bc:
		log.Debug().Msg("Browser released to pool")
	default:
		bc.Cancel()
		log.Warn().Msg("Browser pool full, discarding browser")
	}
}

// Close shuts down every browser in the pool
func (bp *BrowserPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.closed = true

	log.Debug().Msg("Closing browser pool")

	close(bp.browsers)
	for range bp.browsers {
	}
	for _, cancel := range bp.cancels {
		cancel()
	}

	log.Info().Msg("Browser pool closed")

	return nil
}

// Size returns the pool size
func (bp *BrowserPool) Size() int {
	return bp.size
}

// Available returns the number of idle browsers
func (bp *BrowserPool) Available() int {
	return len(bp.browsers)
}
