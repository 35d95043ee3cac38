package config

import (
	"fmt"

	"github.com/law-makers/scrape/internal/proxy"
)

func validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be > 0")
	}
	if c.MaxRetries < 1 || c.MaxRetries > DefaultMaxRetriesLimit {
		return fmt.Errorf("max retries must be between 1 and %d", DefaultMaxRetriesLimit)
	}
	if c.RetryMinDelay < 0 || c.RetryMaxDelay < c.RetryMinDelay {
		return fmt.Errorf("retry delays must satisfy 0 <= min <= max")
	}
	if c.ClearTimeout <= 0 {
		return fmt.Errorf("clear timeout must be > 0")
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst <= 0) {
		return fmt.Errorf("rate limit burst must be > 0 when rps is set")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.Proxy != "" {
		if _, err := proxy.Parse(c.Proxy); err != nil {
			return err
		}
	}
	return nil
}
