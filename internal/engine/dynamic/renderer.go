// internal/engine/dynamic/renderer.go
package dynamic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// Renderer loads a URL in headless Chrome, records the stylesheets the page
// downloads and returns the rendered markup.
type Renderer struct {
	mu          sync.RWMutex
	pool        *BrowserPool
	alloc       AllocatorOptions
	sessions    auth.Loader
	timeout     time.Duration
	idleTimeout time.Duration
}

// Options configures a Renderer.
type Options struct {
	Allocator AllocatorOptions
	Sessions  auth.Loader
	// Timeout bounds a whole render when the call sets none.
	Timeout time.Duration
	// IdleTimeout bounds the wait for network quiescence. The page is
	// captured anyway once it expires.
	IdleTimeout time.Duration
}

// New creates a Renderer. pool may be nil, in which case every render
// starts its own browser.
func New(pool *BrowserPool, opts Options) *Renderer {
	return &Renderer{
		pool:        pool,
		alloc:       opts.Allocator,
		sessions:    opts.Sessions,
		timeout:     opts.Timeout,
		idleTimeout: opts.IdleTimeout,
	}
}

// SetBrowserPool updates the browser pool used by the renderer (thread-safe)
func (r *Renderer) SetBrowserPool(bp *BrowserPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pool = bp
}

// Name returns the name of this renderer
func (r *Renderer) Name() string {
	return "ChromeRenderer"
}

// Render performs the rendered fetch of url.
func (r *Renderer) Render(ctx context.Context, url string, opts *models.DomOptions) (*models.Rendering, error) {
	if opts == nil {
		opts = &models.DomOptions{}
	}
	start := time.Now()

	log.Debug().
		Str("url", url).
		Str("renderer", r.Name()).
		Msg("Starting render")

	timeout := r.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	setup, err := r.setupActions(url, opts)
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab, err := r.openTab(ctx, opts.Proxy)
	if err != nil {
		return nil, r.fail(ctx, "failed to open browser tab", err)
	}
	defer closeTab()
	// The tab does not descend from ctx when it lives in a pooled browser
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	capture := newSheetCapture(tabCtx, func(c context.Context, id network.RequestID) ([]byte, error) {
		return network.GetResponseBody(id).Do(cdp.WithExecutor(c, chromedp.FromContext(c).Target))
	})
	defer capture.close()
	watcher := newLoadWatcher()

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			capture.responseReceived(ev)
			watcher.response(ev)
		case *network.EventLoadingFinished:
			capture.loadingFinished(ev)
		case *page.EventLifecycleEvent:
			watcher.lifecycle(ev)
		}
	})

	var loader cdp.LoaderID
	tasks := append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
		_, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return engine.NewEngineError(engine.ErrCodeNetworkError, "navigation failed", errors.New(errorText)).
				WithDetail("url", url)
		}
		loader = loaderID
		return nil
	}))

	if err := chromedp.Run(tabCtx, tasks...); err != nil {
		return nil, r.fail(ctx, "navigation failed", err)
	}

	idle, err := watcher.waitIdle(ctx, loader, r.idleTimeout)
	if err != nil {
		return nil, r.fail(ctx, "waiting for network idle", err)
	}
	if !idle {
		log.Warn().Str("url", url).Dur("idle_timeout", r.idleTimeout).Msg("Network did not go idle, capturing anyway")
	}

	sheets := capture.close()

	expr, err := annotateExpression(opts)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "invalid annotation options", err)
	}
	var res annotateResult
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(expr, &res)); err != nil {
		return nil, r.fail(ctx, "in-page annotation failed", err)
	}

	rendering := &models.Rendering{
		Markup:      res.Processed,
		PlainMarkup: res.Plain,
		Stylesheets: sheets,
		StatusCode:  watcher.statusOf(loader),
	}

	log.Debug().
		Str("url", url).
		Int("status", rendering.StatusCode).
		Int("stylesheets", len(sheets)).
		Int64("render_time_ms", time.Since(start).Milliseconds()).
		Msg("Render completed")

	return rendering, nil
}

// openTab returns a fresh tab and the function that closes it. Pooled
// browsers are used unless a proxy is requested, since the proxy is a
// browser-wide setting.
func (r *Renderer) openTab(ctx context.Context, proxy string) (context.Context, func(), error) {
	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()

	if pool == nil || proxy != "" {
		alloc := r.alloc
		if proxy != "" {
			alloc.Proxy = proxy
		}
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(alloc)...)
		tabCtx, tabCancel := chromedp.NewContext(allocCtx)
		var once sync.Once
		return tabCtx, func() {
			once.Do(func() {
				tabCancel()
				allocCancel()
			})
		}, nil
	}

	bc, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	// A separate browser context keeps cookies and storage per call
	tabCtx, tabCancel := chromedp.NewContext(bc.Ctx, chromedp.WithNewBrowserContext())
	var once sync.Once
	return tabCtx, func() {
		once.Do(func() {
			tabCancel()
			pool.Release(bc)
		})
	}, nil
}

func (r *Renderer) setupActions(url string, opts *models.DomOptions) ([]chromedp.Action, error) {
	width, height, landscape := opts.ResolveViewport()
	viewport := []chromedp.EmulateViewportOption{chromedp.EmulatePortrait}
	if landscape {
		viewport[0] = chromedp.EmulateLandscape
	}
	if opts.Mobile {
		viewport = append(viewport, chromedp.EmulateMobile, chromedp.EmulateTouch)
	}

	actions := []chromedp.Action{
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		emulation.SetUserAgentOverride(opts.ResolveUserAgent()),
		chromedp.EmulateViewport(int64(width), int64(height), viewport...),
	}

	if opts.SessionName == "" {
		return actions, nil
	}
	if r.sessions == nil {
		return nil, engine.NewEngineError(engine.ErrCodeSessionError, "no session store configured", engine.ErrSessionNotFound)
	}
	session, err := r.sessions.Load(opts.SessionName)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeSessionError, "failed to load session", err).
			WithDetail("session", opts.SessionName)
	}
	if cookies := cookieParams(session.Cookies, url); len(cookies) > 0 {
		actions = append(actions, network.SetCookies(cookies))
	}
	if len(session.Headers) > 0 {
		headers := make(network.Headers, len(session.Headers))
		for k, v := range session.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	return actions, nil
}

// cookieParams converts stored cookies; cookies without a domain are bound
// to the target URL.
func cookieParams(cookies []auth.Cookie, url string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Domain == "" {
			p.URL = url
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

func (r *Renderer) fail(ctx context.Context, msg string, err error) error {
	if engine.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return engine.NewEngineError(engine.ErrCodeTimeout, msg, fmt.Errorf("%w: %v", engine.ErrTimeout, err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return engine.NewEngineError(engine.ErrCodeBrowserCrash, msg, err)
}
