package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel           = "info"
	DefaultJSONLog            = false
	DefaultLogMaxSizeMB       = 50
	DefaultLogMaxBackups      = 3
	DefaultUserAgent          = "" // desktop or mobile default, per request
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultRateLimitRPS       = 5.0
	DefaultRateLimitBurst     = 10
	DefaultBrowserPoolSize    = 3
	DefaultMaxBrowserPoolSize = 10
	DefaultBrowserHeadless    = true
	DefaultNetworkIdleTimeout = 15 * time.Second
	DefaultCacheTTL           = 30 * time.Minute
	DefaultCacheMaxSizeBytes  = 64 * 1024 * 1024 // 64MB of stylesheet text
	DefaultBatchConcurrency   = 0                // auto
	DefaultProxyCooldown      = 5 * time.Minute
	DefaultBatchRetries       = 1

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DOMMAP_"
	// DefaultConfigFile is read from the home directory when present.
	DefaultConfigFile = ".dommap/config.yaml"
)
