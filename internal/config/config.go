package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`
	LogFile  string `yaml:"log_file"`

	// Fetching
	HTTPTimeout time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	Proxy       string        `yaml:"proxy"`
	Proxies     []string      `yaml:"proxies"`

	// Rate limiting of the raw fetch, per host
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Browser
	BrowserPoolSize    int           `yaml:"browser_pool_size"`
	BrowserHeadless    bool          `yaml:"headless"`
	ChromePath         string        `yaml:"chrome_path"`
	NetworkIdleTimeout time.Duration `yaml:"network_idle_timeout"`

	// Parsed stylesheet cache
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheMaxSizeBytes int64         `yaml:"cache_max_bytes"`

	// Batch
	BatchConcurrency int `yaml:"batch_concurrency"`
	// BatchRetries re-runs a failed page this many times, on the next proxy
	// when proxies are configured.
	BatchRetries int `yaml:"batch_retries"`

	// Source is the config file that was read, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:           DefaultLogLevel,
		JSONLog:            DefaultJSONLog,
		HTTPTimeout:        DefaultHTTPTimeout,
		UserAgent:          DefaultUserAgent,
		RateLimitRPS:       DefaultRateLimitRPS,
		RateLimitBurst:     DefaultRateLimitBurst,
		BrowserPoolSize:    DefaultBrowserPoolSize,
		BrowserHeadless:    DefaultBrowserHeadless,
		NetworkIdleTimeout: DefaultNetworkIdleTimeout,
		CacheTTL:           DefaultCacheTTL,
		CacheMaxSizeBytes:  DefaultCacheMaxSizeBytes,
		BatchConcurrency:   DefaultBatchConcurrency,
		BatchRetries:       DefaultBatchRetries,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	path, explicit := configPath(cmd)
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		} else {
			cfg.Source = path
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if cmd != nil {
		if err := cfg.applyFlags(cmd); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// configPath returns the file to read and whether the user named it.
func configPath(cmd *cobra.Command) (string, bool) {
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String(), true
		}
	}
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v, true
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, DefaultConfigFile), false
	}
	return "", false
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

// applyEnv reads DOMMAP_* overrides through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return v, ok && v != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := get("USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := get("PROXY"); ok {
		c.Proxy = v
	}
	if v, ok := get("CHROME_PATH"); ok {
		c.ChromePath = v
	}

	var err error
	if v, ok := get("JSON_LOG"); ok {
		if c.JSONLog, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%sJSON_LOG: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("HEADLESS"); ok {
		if c.BrowserHeadless, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("TIMEOUT"); ok {
		if c.HTTPTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("IDLE_TIMEOUT"); ok {
		if c.NetworkIdleTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%sIDLE_TIMEOUT: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("BROWSER_POOL_SIZE"); ok {
		if c.BrowserPoolSize, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sBROWSER_POOL_SIZE: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("BATCH_RETRIES"); ok {
		if c.BatchRetries, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sBATCH_RETRIES: %w", EnvPrefix, err)
		}
	}
	if v, ok := get("CONCURRENCY"); ok {
		if c.BatchConcurrency, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err)
		}
	}
	return nil
}

// applyFlags copies flags the user actually set.
func (c *Config) applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	changed := func(name string) (string, bool) {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			return "", false
		}
		return f.Value.String(), true
	}

	if v, ok := changed("user-agent"); ok && v != "" {
		c.UserAgent = v
	}
	if v, ok := changed("proxy"); ok {
		c.Proxy = v
	}
	if v, ok := changed("chrome-path"); ok {
		c.ChromePath = v
	}
	if v, ok := changed("log-file"); ok {
		c.LogFile = v
	}
	if v, ok := changed("timeout"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := changed("idle-timeout"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid --idle-timeout: %w", err)
		}
		c.NetworkIdleTimeout = d
	}
	if v, ok := changed("json"); ok && v == "true" {
		c.JSONLog = true
	}
	if v, ok := changed("headed"); ok && v == "true" {
		c.BrowserHeadless = false
	}
	if v, ok := changed("quiet"); ok && v == "true" {
		c.LogLevel = "error"
	}
	if v, ok := changed("verbose"); ok && v == "true" {
		c.LogLevel = "debug"
	}
	return nil
}
