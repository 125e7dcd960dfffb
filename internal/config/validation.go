package config

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

// Validate reports the first setting that is out of range.
func Validate(c *Config) error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.NetworkIdleTimeout < 0 {
		return fmt.Errorf("network idle timeout must be >= 0")
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPoolSize {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPoolSize)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit rps and burst must be > 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.BatchRetries < 0 {
		return fmt.Errorf("retries must be >= 0")
	}
	if c.BatchConcurrency < 0 {
		return fmt.Errorf("batch concurrency must be >= 0")
	}
	for _, p := range append([]string{c.Proxy}, c.Proxies...) {
		if p == "" {
			continue
		}
		if u, err := url.Parse(p); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid proxy %q", p)
		}
	}
	return nil
}
