package config

import (
	"time"

	"github.com/law-makers/scrape/internal/fetch"
)

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultUserAgent         = fetch.DefaultUserAgent
	DefaultAttemptTimeout    = fetch.DefaultAttemptTimeout
	DefaultMaxRetries        = fetch.DefaultMaxRetries
	DefaultRetryMinDelay     = fetch.DefaultMinDelay
	DefaultRetryMaxDelay     = fetch.DefaultMaxDelay
	DefaultClearTimeout      = 15 * time.Second
	DefaultRateLimitRPS      = 5.0
	DefaultRateLimitBurst    = 10
	DefaultCacheTTL          = 0 * time.Second
	DefaultCacheMaxSizeBytes = 100 * 1024 * 1024 // 100MB
	DefaultBrowserHeadless   = true
	DefaultFingerprint       = false
	DefaultMaxRetriesLimit   = 20
)

// EnvPrefix is prepended to every environment override, e.g. SCRAPE_PROXY.
const EnvPrefix = "SCRAPE"
