package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/internal/proxy"
	"github.com/law-makers/dommap/internal/retry"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGetter struct {
	delay   time.Duration
	fail    map[string]error
	active  atomic.Int32
	maxSeen atomic.Int32

	mu      sync.Mutex
	proxies []string
}

func (m *mockGetter) GetDom(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if n <= prev || m.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	m.mu.Lock()
	m.proxies = append(m.proxies, opts.Proxy)
	m.mu.Unlock()

	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := m.fail[url]; err != nil {
		return nil, err
	}
	return &models.CompositePageResult{URL: url}, nil
}

func collect(ch <-chan models.BatchResult) []models.BatchResult {
	var out []models.BatchResult
	for r := range ch {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func TestRunOneResultPerURL(t *testing.T) {
	g := &mockGetter{
		delay: 10 * time.Millisecond,
		fail:  map[string]error{"https://b.test/2": errors.New("fetch error")},
	}
	urls := []string{"https://a.test/1", "https://b.test/2", "https://a.test/3", "not-a-url"}

	results := collect(New(g, 2).Run(context.Background(), urls, nil))
	require.Len(t, results, 4)

	errs := 0
	for _, r := range results {
		if r.Error != nil {
			errs++
			assert.Equal(t, "https://b.test/2", r.URL)
			assert.Equal(t, "fetch error", r.Err)
			continue
		}
		assert.Equal(t, r.URL, r.Result.URL)
	}
	assert.Equal(t, 1, errs)
}

func TestRunBoundsConcurrency(t *testing.T) {
	g := &mockGetter{delay: 20 * time.Millisecond}
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://a.test/" + string(rune('a'+i))
	}

	results := collect(New(g, 3).Run(context.Background(), urls, nil))
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, g.maxSeen.Load(), int32(3))
}

func TestRunCancelled(t *testing.T) {
	g := &mockGetter{delay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}

	ch := New(g, 1).Run(ctx, urls, nil)
	time.Sleep(20 * time.Millisecond)
	cancel()

	results := collect(ch)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestRunRotatesProxies(t *testing.T) {
	netErr := engine.NewEngineError(engine.ErrCodeNetworkError, "failed to fetch URL", errors.New("proxy refused"))
	g := &mockGetter{fail: map[string]error{"https://a.test/1": netErr}}
	pool := proxy.NewProxyPool([]string{"http://p1:8080", "http://p2:8080"}, time.Minute)

	results := collect(New(g, 1).WithProxies(pool).Run(context.Background(),
		[]string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}, &models.DomOptions{}))
	require.Len(t, results, 3)

	// p1 failed on the first URL and is skipped afterwards
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080", "http://p2:8080"}, g.proxies)
}

// flakyGetter fails the first len(errs) calls with errs in order.
type flakyGetter struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	proxies []string
}

func (f *flakyGetter) GetDom(_ context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proxies = append(f.proxies, opts.Proxy)
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return &models.CompositePageResult{URL: url}, nil
}

func fastPolicy(attempts int) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = attempts
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = time.Millisecond
	return p
}

func statusErr(code int) error {
	return engine.NewEngineError(engine.ErrCodeHTTPStatus, "unexpected status", engine.ErrUnexpectedStatus).
		WithDetail("status", code)
}

func TestRunRetriesWithNextProxy(t *testing.T) {
	netErr := engine.NewEngineError(engine.ErrCodeNetworkError, "failed to fetch URL", errors.New("refused"))
	g := &flakyGetter{errs: []error{netErr}}
	pool := proxy.NewProxyPool([]string{"http://p1:8080", "http://p2:8080"}, time.Minute)

	results := collect(New(g, 1).WithProxies(pool).WithRetry(fastPolicy(3)).
		Run(context.Background(), []string{"https://a.test/1"}, nil))
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Error)
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, g.proxies)
}

func TestRunRetryClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"retryable status", statusErr(503), 2},
		{"client status", statusErr(404), 1},
		{"timeout", engine.NewEngineError(engine.ErrCodeTimeout, "timed out", context.DeadlineExceeded), 2},
		{"validation", engine.NewEngineError(engine.ErrCodeValidation, "bad url", engine.ErrInvalidURL), 1},
		{"plain error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &flakyGetter{errs: []error{tt.err}}
			results := collect(New(g, 1).WithRetry(fastPolicy(2)).
				Run(context.Background(), []string{"https://a.test/1"}, nil))
			require.Len(t, results, 1)
			assert.Equal(t, tt.calls, g.calls)
			if tt.calls == 1 {
				assert.Error(t, results[0].Error)
			} else {
				assert.NoError(t, results[0].Error)
			}
		})
	}
}

func TestRunWithoutRetryTriesOnce(t *testing.T) {
	g := &flakyGetter{errs: []error{statusErr(503)}}
	results := collect(New(g, 1).Run(context.Background(), []string{"https://a.test/1"}, nil))
	require.Len(t, results, 1)
	assert.Equal(t, engine.ErrCodeHTTPStatus, engine.CodeOf(results[0].Error))
	assert.Equal(t, 1, g.calls)
}

func TestGroupByDomain(t *testing.T) {
	groups, domains := GroupByDomain([]string{"https://b.test/1", "https://a.test/1", "::bad", "https://b.test/2"})

	assert.Equal(t, []string{"a.test", "b.test", "default"}, domains)
	assert.Equal(t, []string{"https://b.test/1", "https://b.test/2"}, groups["b.test"])
	assert.Equal(t, []string{"::bad"}, groups["default"])
}

func TestOptimalConcurrency(t *testing.T) {
	n := OptimalConcurrency()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, maxConcurrency)
}
