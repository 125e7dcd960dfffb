// internal/engine/batch/runner.go
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/internal/proxy"
	"github.com/law-makers/dommap/internal/retry"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// Getter is the single-URL extraction a batch fans out.
type Getter interface {
	GetDom(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error)
}

// Runner extracts many URLs with bounded concurrency.
type Runner struct {
	getter      Getter
	concurrency int
	proxies     *proxy.ProxyPool
	policy      retry.Policy
}

// New creates a Runner.
// If concurrency <= 0, it auto-tunes based on system resources
func New(getter Getter, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = OptimalConcurrency()
	}
	return &Runner{
		getter:      getter,
		concurrency: concurrency,
		policy:      retry.Policy{MaxAttempts: 1},
	}
}

// WithProxies rotates each URL over pool; proxies that fail at the network
// level are put on cooldown.
func (r *Runner) WithProxies(pool *proxy.ProxyPool) *Runner {
	r.proxies = pool
	return r
}

// WithRetry re-runs a failed URL under p. Each attempt takes the next proxy
// when a pool is set. Only network errors, timeouts and the policy's
// retryable HTTP statuses are retried.
func (r *Runner) WithRetry(p retry.Policy) *Runner {
	if p.Retryable == nil {
		p.Retryable = Retryable(p)
	}
	r.policy = p
	return r
}

// Retryable classifies GetDom errors for p.
func Retryable(p retry.Policy) func(error) bool {
	return func(err error) bool {
		var ee *engine.EngineError
		if !errors.As(err, &ee) {
			return errors.Is(err, context.DeadlineExceeded)
		}
		switch ee.Code {
		case engine.ErrCodeNetworkError, engine.ErrCodeTimeout:
			return true
		case engine.ErrCodeHTTPStatus:
			status, _ := ee.Details["status"].(int)
			return p.RetryableStatus(status)
		}
		return false
	}
}

// Concurrency returns the worker limit.
func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Run extracts every URL and sends exactly one result per URL on the
// returned channel, which is closed when all are done. Domains are walked
// in turn so a single host's URLs start together and share connections.
// URLs not started before ctx ends get ctx's error.
func (r *Runner) Run(ctx context.Context, urls []string, opts *models.DomOptions) <-chan models.BatchResult {
	results := make(chan models.BatchResult, len(urls))
	if opts == nil {
		opts = &models.DomOptions{}
	}

	groups, domains := GroupByDomain(urls)

	go func() {
		defer close(results)

		var wg sync.WaitGroup
		sem := make(chan struct{}, r.concurrency)

		for _, domain := range domains {
			log.Debug().Str("domain", domain).Int("urls", len(groups[domain])).Msg("Processing domain group")

			for _, u := range groups[domain] {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					results <- failed(u, ctx.Err())
					continue
				}

				wg.Add(1)
				go func(u string) {
					defer wg.Done()
					defer func() { <-sem }()
					results <- r.one(ctx, u, opts)
				}(u)
			}
		}

		wg.Wait()
	}()

	return results
}

func (r *Runner) one(ctx context.Context, url string, opts *models.DomOptions) models.BatchResult {
	if err := ctx.Err(); err != nil {
		return failed(url, err)
	}

	start := time.Now()
	var result *models.CompositePageResult
	err := retry.Do(ctx, r.policy, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			log.Debug().Str("url", url).Int("attempt", attempt+1).Msg("Retrying batch item")
		}
		res, err := r.attempt(ctx, url, opts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Batch item failed")
		return failed(url, err)
	}

	log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Batch item done")
	return models.BatchResult{URL: url, Result: result}
}

// attempt runs GetDom once through the next proxy, if any, and records the
// proxy's health.
func (r *Runner) attempt(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	o := *opts
	var via string
	if r.proxies != nil && r.proxies.Len() > 0 {
		via = r.proxies.GetNext()
		o.Proxy = via
	}

	result, err := r.getter.GetDom(ctx, url, &o)
	if via == "" {
		return result, err
	}

	switch engine.CodeOf(err) {
	case engine.ErrCodeNetworkError, engine.ErrCodeTimeout:
		r.proxies.MarkFailed(via)
		log.Warn().Str("proxy", via).Str("url", url).Msg("Proxy marked as failed")
	case "":
		if err == nil {
			r.proxies.MarkHealthy(via)
		}
	}
	return result, err
}

func failed(url string, err error) models.BatchResult {
	return models.BatchResult{URL: url, Error: err, Err: err.Error()}
}
