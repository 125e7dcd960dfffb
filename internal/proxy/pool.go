// Package proxy rotates outgoing requests over a list of proxy servers.
package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped.
const DefaultCooldown = 5 * time.Minute

// ProxyPool hands out proxies round-robin, skipping ones that failed
// within the cooldown window.
type ProxyPool struct {
	proxies  []string
	index    int
	cooldown time.Duration
	mu       sync.Mutex
	failed   map[string]time.Time
	now      func() time.Time
}

// NewProxyPool creates a pool from proxies. Blank and duplicate entries are
// dropped; a cooldown <= 0 means DefaultCooldown.
func NewProxyPool(proxies []string, cooldown time.Duration) *ProxyPool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	seen := make(map[string]bool, len(proxies))
	clean := make([]string, 0, len(proxies))
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		clean = append(clean, p)
	}
	return &ProxyPool{
		proxies:  clean,
		cooldown: cooldown,
		failed:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	return len(p.proxies)
}

// GetNext returns the next healthy proxy, or "" for an empty pool. When
// every proxy is cooling down the one that failed longest ago is returned.
func (p *ProxyPool) GetNext() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	now := p.now()
	oldest := ""
	var oldestAt time.Time
	for range p.proxies {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		failedAt, ok := p.failed[proxy]
		if !ok {
			return proxy
		}
		if now.Sub(failedAt) >= p.cooldown {
			delete(p.failed, proxy)
			return proxy
		}
		if oldest == "" || failedAt.Before(oldestAt) {
			oldest, oldestAt = proxy, failedAt
		}
	}
	return oldest
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *ProxyPool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *ProxyPool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
