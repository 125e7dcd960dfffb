package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/dommap/internal/cache"
	"github.com/law-makers/dommap/internal/css"
	"github.com/law-makers/dommap/internal/reqctx"
	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body  string
	err   error
	delay time.Duration
	calls atomic.Int32

	mu   sync.Mutex
	last models.RequestOptions
}

func (f *fakeFetcher) Fetch(ctx context.Context, opts models.RequestOptions) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = opts
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.body, f.err
}

func (f *fakeFetcher) Name() string { return "fake-fetcher" }

type fakeRenderer struct {
	rendering *models.Rendering
	err       error
	delay     time.Duration

	mu       sync.Mutex
	lastOpts *models.DomOptions
}

func (r *fakeRenderer) Render(ctx context.Context, url string, opts *models.DomOptions) (*models.Rendering, error) {
	r.mu.Lock()
	r.lastOpts = opts
	r.mu.Unlock()
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	// Each call gets its own copy, as a browser would produce
	cp := *r.rendering
	return &cp, nil
}

func (r *fakeRenderer) Name() string { return "fake-renderer" }

const (
	rawPage      = "<html><head><title> Raw </title></head>\n<body><div class=\"box\">x</div></body></html>\n"
	renderedPage = `<html><head><title>Rendered</title><style>.box{color:red} p{margin:0}</style>` +
		`<style></style></head><body><div class="box">x</div><p>p</p></body></html>`
)

func newTestExtractor(f *fakeFetcher, r *fakeRenderer) *Extractor {
	return NewExtractor(f, r, css.NewLoader(cache.NewMemoryCache(1<<20, time.Minute), time.Minute))
}

func defaultRenderer() *fakeRenderer {
	return &fakeRenderer{rendering: &models.Rendering{
		Markup:      renderedPage,
		PlainMarkup: renderedPage,
		Stylesheets: []models.CapturedStylesheet{
			{URL: "https://example.com/site.css", Text: ".box{width:10px} .box{color:blue !important}"},
		},
		StatusCode: 200,
	}}
}

func TestGetDomMapsStylesheets(t *testing.T) {
	f := &fakeFetcher{body: rawPage}
	e := newTestExtractor(f, defaultRenderer())

	result, err := e.GetDom(context.Background(), "https://example.com", nil)
	require.NoError(t, err)

	assert.Equal(t, rawPage, result.Source.Markup)
	assert.Equal(t, "Raw", result.Source.Title)
	assert.Equal(t, "Rendered", result.Processed.Title)
	assert.Equal(t, renderedPage, result.Processed.PlainMarkup)

	require.Len(t, result.Stylesheets, 2)
	assert.Equal(t, "https://example.com/site.css", result.Stylesheets[0].SourceID)
	assert.Equal(t, "html0", result.Stylesheets[1].SourceID)
	require.NotNil(t, result.Stylesheet("html0"))
	assert.NotNil(t, result.Stylesheet("html0").Rules)
	assert.Nil(t, result.Stylesheet("html1"))

	box := result.Processed.Document.SelectFirst(".box")
	require.NotNil(t, box)
	assert.Equal(t, dom.MappedCSS{
		"width": {Value: "10px"},
		"color": {Value: "blue !important"},
	}, box.CSS)

	p := result.Processed.Document.SelectFirst("p")
	assert.Equal(t, "0", p.CSS["margin"].Value)

	// The raw tree is never mapped
	for _, n := range result.Source.Document.Elements() {
		assert.Nil(t, n.CSS)
	}
}

func TestGetDomPassesOptionsToBothFetches(t *testing.T) {
	f := &fakeFetcher{body: rawPage}
	r := defaultRenderer()
	opts := &models.DomOptions{
		Mobile:      true,
		Headers:     map[string]string{"X-A": "1"},
		SessionName: "work",
	}

	_, err := newTestExtractor(f, r).GetDom(context.Background(), "https://example.com", opts)
	require.NoError(t, err)

	assert.Equal(t, models.DefaultMobileUserAgent, f.last.UserAgent)
	assert.Equal(t, "1", f.last.Headers["X-A"])
	assert.Equal(t, "work", f.last.SessionName)
	assert.Same(t, opts, r.lastOpts)
}

func TestGetDomElementCount(t *testing.T) {
	r := defaultRenderer()
	r.rendering.Markup = "<html><head></head><body><div><p>a</p><p>b</p></div></body></html>"
	result, err := newTestExtractor(&fakeFetcher{body: "<p>x</p>"}, r).GetDom(context.Background(), "https://example.com", nil)
	require.NoError(t, err)

	// html, head, body, div, p, p
	assert.Equal(t, 6, result.Processed.ElementCount)
	assert.Empty(t, result.Processed.Title)
}

func TestGetDomFailsWhenRawFetchFails(t *testing.T) {
	fetchErr := NewEngineError(ErrCodeHTTPStatus, "GET returned 404", ErrUnexpectedStatus)
	r := defaultRenderer()
	r.delay = time.Second

	start := time.Now()
	_, err := newTestExtractor(&fakeFetcher{err: fetchErr}, r).GetDom(context.Background(), "https://example.com", nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeHTTPStatus, CodeOf(err))
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var re *reqctx.RequestError
	require.ErrorAs(t, err, &re)
	assert.NotEmpty(t, re.RequestID)
}

func TestGetDomFailsWhenRenderFails(t *testing.T) {
	r := &fakeRenderer{err: NewEngineError(ErrCodeBrowserCrash, "navigation failed", errors.New("boom"))}
	_, err := newTestExtractor(&fakeFetcher{body: rawPage}, r).GetDom(context.Background(), "https://example.com", nil)
	assert.Equal(t, ErrCodeBrowserCrash, CodeOf(err))
}

func TestGetDomCombinesBothErrors(t *testing.T) {
	f := &fakeFetcher{err: errors.New("dial tcp: refused")}
	r := &fakeRenderer{err: errors.New("chrome exited")}
	_, err := newTestExtractor(f, r).GetDom(context.Background(), "https://example.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Contains(t, err.Error(), "chrome exited")
}

func TestGetDomRejectsInvalidURL(t *testing.T) {
	f := &fakeFetcher{body: rawPage}
	_, err := newTestExtractor(f, defaultRenderer()).GetDom(context.Background(), "not a url", nil)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Zero(t, f.calls.Load())
}

func TestGetDomTimeout(t *testing.T) {
	f := &fakeFetcher{body: rawPage, delay: time.Second}
	r := defaultRenderer()
	r.delay = time.Second

	_, err := newTestExtractor(f, r).GetDom(context.Background(), "https://example.com",
		&models.DomOptions{Timeout: 30 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetDomIsRepeatable(t *testing.T) {
	e := newTestExtractor(&fakeFetcher{body: rawPage}, defaultRenderer())

	first, err := e.GetDom(context.Background(), "https://example.com", nil)
	require.NoError(t, err)
	second, err := e.GetDom(context.Background(), "https://example.com", nil)
	require.NoError(t, err)

	// Separate trees with the same mapping; parsed rules come from the cache
	assert.NotSame(t, first.Processed.DOM, second.Processed.DOM)
	assert.Equal(t, first.Processed.Document.SelectFirst(".box").CSS, second.Processed.Document.SelectFirst(".box").CSS)
	assert.Same(t, first.Stylesheets[0].Rules, second.Stylesheets[0].Rules)
}
