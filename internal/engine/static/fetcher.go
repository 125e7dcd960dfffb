// internal/engine/static/fetcher.go
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/internal/ratelimit"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// Fetcher performs the raw fetch: a single GET whose body is returned
// exactly as served, decoded to UTF-8 and trimmed.
type Fetcher struct {
	limiter  ratelimit.RateLimiter
	client   *http.Client
	sessions auth.Loader
	timeout  time.Duration
}

// New creates a Fetcher. limiter and sessions may be nil.
func New(lim ratelimit.RateLimiter, client *http.Client, sessions auth.Loader, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		limiter:  lim,
		client:   client,
		sessions: sessions,
		timeout:  timeout,
	}
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "StaticFetcher"
}

// Fetch retrieves opts.URL and returns its body. Any status other than 200
// is an HTTP_STATUS error.
func (f *Fetcher) Fetch(ctx context.Context, opts models.RequestOptions) (string, error) {
	start := time.Now()

	log.Debug().
		Str("url", opts.URL).
		Str("fetcher", f.Name()).
		Msg("Starting fetch")

	timeout := f.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, opts.URL); err != nil {
			return "", engine.NewEngineError(engine.ErrCodeTimeout, "rate limiter wait aborted", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return "", engine.NewEngineError(engine.ErrCodeValidation, "failed to create request", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = models.DefaultDesktopUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if err := f.applySession(req, opts.SessionName); err != nil {
		return "", err
	}

	// Custom headers win over session headers
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	client, err := f.clientFor(opts.Proxy)
	if err != nil {
		return "", err
	}

	raw, err := f.do(ctx, client, req)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("url", opts.URL).
		Int("bytes", len(raw)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Fetch completed")

	return strings.TrimSpace(string(raw)), nil
}

// do sends req and reads the decoded body of a 200 response.
func (f *Fetcher) do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, engine.NewEngineError(engine.ErrCodeTimeout, "raw fetch timed out", engine.ErrTimeout).
				WithDetail("url", req.URL.String())
		}
		return nil, engine.NewEngineError(engine.ErrCodeNetworkError, "failed to fetch URL", err).
			WithDetail("url", req.URL.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, engine.NewEngineError(engine.ErrCodeHTTPStatus,
			fmt.Sprintf("GET %s returned %d", req.URL, resp.StatusCode),
			engine.ErrUnexpectedStatus).
			WithDetail("status", resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset, read the bytes as they are
		body = resp.Body
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, engine.NewEngineError(engine.ErrCodeTimeout, "raw fetch timed out", engine.ErrTimeout)
		}
		return nil, engine.NewEngineError(engine.ErrCodeNetworkError, "failed to read response body", err)
	}
	return raw, nil
}

func (f *Fetcher) applySession(req *http.Request, name string) error {
	if name == "" {
		return nil
	}
	if f.sessions == nil {
		return engine.NewEngineError(engine.ErrCodeSessionError, "no session store configured", engine.ErrSessionNotFound)
	}
	session, err := f.sessions.Load(name)
	if err != nil {
		return engine.NewEngineError(engine.ErrCodeSessionError, "failed to load session", err).
			WithDetail("session", name)
	}
	for _, c := range session.HTTPCookies() {
		req.AddCookie(c)
	}
	for key, value := range session.Headers {
		req.Header.Set(key, value)
	}
	log.Debug().Str("session", name).Int("cookies", len(session.Cookies)).Msg("Session applied")
	return nil
}

// clientFor returns the shared client, or a copy routed through proxyURL.
func (f *Fetcher) clientFor(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return f.client, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "invalid proxy URL", err).
			WithDetail("proxy", proxyURL)
	}

	var transport *http.Transport
	if t, ok := f.client.Transport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	transport.Proxy = http.ProxyURL(u)

	c := *f.client
	c.Transport = transport
	return &c, nil
}
