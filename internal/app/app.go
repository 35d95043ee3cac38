// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/cache"
	"github.com/law-makers/scrape/internal/clearer"
	"github.com/law-makers/scrape/internal/config"
	"github.com/law-makers/scrape/internal/controller"
	"github.com/law-makers/scrape/internal/engine"
	"github.com/law-makers/scrape/internal/fetch"
	"github.com/law-makers/scrape/internal/ratelimit"
	"github.com/law-makers/scrape/internal/registry"
	"github.com/law-makers/scrape/internal/session"
	"github.com/law-makers/scrape/internal/transport"
	"github.com/law-makers/scrape/pkg/models"
)

// Application holds the dependencies shared by every run in the process.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter ratelimit.RateLimiter
	Registry    *registry.Registry
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the in-memory page cache when a cache TTL is configured
//   - Creates the per-domain rate limiter when a rate is configured
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogger(cfg, os.Stderr)

	var memCache cache.Cache
	if cfg.CacheTTL > 0 {
		memCache = cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
		logger.Debug().
			Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
			Dur("ttl", cfg.CacheTTL).
			Msg("Memory cache initialized")
	}

	var limiter ratelimit.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Debug().
			Float64("rps", cfg.RateLimitRPS).
			Int("burst", cfg.RateLimitBurst).
			Msg("Rate limiter initialized")
	}

	a := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: limiter,
		Registry:    registry.Default,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return a, nil
}

// setupLogger configures the global zerolog logger and returns it.
func setupLogger(cfg *config.Config, stderr io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = stderr
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	logger := log.Logger
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return logger
}

// Env builds the plugin environment for one run. The run's proxy and
// headers take precedence over the configured defaults.
func (a *Application) Env(run models.RunConfig, cookies []*http.Cookie) engine.Env {
	cfg := a.Config

	headers := make(map[string]string, len(run.Headers)+1)
	headers["User-Agent"] = cfg.UserAgent
	for k, v := range run.Headers {
		headers[k] = v
	}

	proxyAddr := cfg.Proxy
	if run.Proxy != "" {
		proxyAddr = run.Proxy
	}
	topts := transport.Options{
		Proxy:       proxyAddr,
		Fingerprint: cfg.Fingerprint,
	}

	fetcher := fetch.New(fetch.Options{
		Headers:        headers,
		MaxRetries:     cfg.MaxRetries,
		MinDelay:       cfg.RetryMinDelay,
		MaxDelay:       cfg.RetryMaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
		Transport:      topts,
		Limiter:        a.RateLimiter,
		Cache:          a.Cache,
		CacheTTL:       cfg.CacheTTL,
	})

	return engine.Env{
		Config:  run,
		Fetcher: fetcher,
		Cookies: cookies,
		Session: session.Options{
			Transport: topts,
			Timeout:   cfg.AttemptTimeout,
		},
		Browser: session.BrowserOptions{
			Headless:   cfg.BrowserHeadless,
			UserAgent:  fetcher.UserAgent(),
			Proxy:      proxyAddr,
			ChromePath: cfg.ChromePath,
		},
	}
}

// NewController prepares a single run. onState may be nil.
func (a *Application) NewController(run models.RunConfig, cookies []*http.Cookie, onState func(models.State)) *controller.Controller {
	if run.ClearBaseURL == "" {
		run.ClearBaseURL = a.Config.ClearBaseURL
	}
	env := a.Env(run, cookies)

	var cl controller.Clearer
	if run.ClearBaseURL != "" {
		cl = clearer.New(clearer.Options{
			BaseURL:   run.ClearBaseURL,
			UserAgent: env.Fetcher.UserAgent(),
			Timeout:   a.Config.ClearTimeout,
		})
	}

	return controller.New(run, controller.Options{
		Registry: a.Registry,
		Clearer:  cl,
		Env:      env,
		OnState:  onState,
	})
}

// Close gracefully shuts down the application and all its resources.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	if a.Cache != nil {
		a.Cache.Close()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
