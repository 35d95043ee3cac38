// Package fetch retrieves HTML pages with bounded, jittered retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/cache"
	"github.com/law-makers/scrape/internal/ratelimit"
	"github.com/law-makers/scrape/internal/retry"
	"github.com/law-makers/scrape/internal/transport"
	"github.com/law-makers/scrape/pkg/models"
)

// DefaultUserAgent is sent when the configured headers carry none.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const (
	DefaultMaxRetries     = 3
	DefaultMinDelay       = 1 * time.Second
	DefaultMaxDelay       = 3 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// Getter performs a single GET and returns the decoded body. Non-2xx
// responses must be reported as retry.HTTPError.
type Getter interface {
	Get(ctx context.Context, rawURL string, header http.Header) (string, error)
}

// Options configures a Fetcher. Zero values fall back to the defaults above.
type Options struct {
	Headers        map[string]string
	MaxRetries     int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration

	// Transport is used to build a fresh connection context per attempt.
	Transport transport.Options
	Jar       http.CookieJar

	Limiter  ratelimit.RateLimiter
	Cache    cache.Cache
	CacheTTL time.Duration

	// Sleep replaces the inter-attempt wait; tests use it to count delays.
	Sleep retry.SleepFunc

	// OnAttempt observes every attempt once it resolves.
	OnAttempt func(models.FetchAttempt)
}

// Fetcher performs resilient GETs. It is safe for sequential reuse; a run
// never issues concurrent attempts for the same fetch.
type Fetcher struct {
	opts   Options
	header http.Header
	getter Getter
}

// New creates a Fetcher. Without a Getter each attempt opens its own client.
func New(opts Options) *Fetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MinDelay <= 0 && opts.MaxDelay <= 0 {
		opts.MinDelay, opts.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}

	header := make(http.Header, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		header.Set(k, v)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", DefaultUserAgent)
	}

	f := &Fetcher{opts: opts, header: header}
	f.getter = freshClientGetter{opts: opts}
	return f
}

// WithGetter returns a copy of f that issues attempts through g, e.g. a
// session that keeps connections open across fetches.
func (f *Fetcher) WithGetter(g Getter) *Fetcher {
	cp := *f
	if g != nil {
		cp.getter = g
	}
	return &cp
}

// Header returns a copy of the request headers.
func (f *Fetcher) Header() http.Header {
	return f.header.Clone()
}

// UserAgent returns the effective User-Agent.
func (f *Fetcher) UserAgent() string {
	return f.header.Get("User-Agent")
}

// Options returns the effective options.
func (f *Fetcher) Options() Options {
	return f.opts
}

// Fetch retrieves rawURL with the configured retry ceiling.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (string, bool, error) {
	return f.FetchRetries(ctx, rawURL, params, f.opts.MaxRetries)
}

// FetchRetries retrieves rawURL, trying up to maxRetries times.
//
// It returns the body and true on the first successful attempt. When every
// attempt fails it returns ok=false and a nil error: absence of data is a
// normal outcome. A non-nil error means the caller cancelled ctx or the URL
// could not be built.
func (f *Fetcher) FetchRetries(ctx context.Context, rawURL string, params url.Values, maxRetries int) (html string, ok bool, err error) {
	target, err := BuildURL(rawURL, params)
	if err != nil {
		return "", false, err
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	if f.opts.Cache != nil {
		if body, hit := f.opts.Cache.Get(target); hit {
			return body, true, nil
		}
	}

	cfg := retry.Config{
		MaxAttempts: maxRetries,
		MinDelay:    f.opts.MinDelay,
		MaxDelay:    f.opts.MaxDelay,
		Sleep:       f.opts.Sleep,
	}

	err = retry.WithRetry(ctx, cfg, func(attempt int) error {
		body, err := f.attempt(ctx, target, attempt)
		if err != nil {
			return err
		}
		html = body
		return nil
	})

	switch {
	case err == nil:
		if f.opts.Cache != nil {
			f.opts.Cache.Set(target, html, f.opts.CacheTTL)
		}
		return html, true, nil
	case errors.Is(err, retry.ErrExhausted):
		log.Error().
			Str("url", target).
			Int("attempts", maxRetries).
			Msg("No data after all attempts")
		return "", false, nil
	default:
		return "", false, err
	}
}

func (f *Fetcher) attempt(ctx context.Context, target string, n int) (string, error) {
	log.Info().
		Str("url", target).
		Int("attempt", n).
		Msg("Requesting page")

	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Wait(ctx, target); err != nil {
			return "", err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.AttemptTimeout)
	defer cancel()

	start := time.Now()
	body, err := f.getter.Get(attemptCtx, target, f.header.Clone())
	elapsed := time.Since(start)

	if f.opts.OnAttempt != nil {
		f.opts.OnAttempt(models.FetchAttempt{
			Attempt:  n,
			URL:      target,
			HTML:     body,
			Err:      err,
			Duration: elapsed,
		})
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("url", target).
			Int("attempt", n).
			Int("status", retry.StatusCode(err)).
			Msg("Request failed")
		return "", err
	}

	log.Debug().
		Str("url", target).
		Int("attempt", n).
		Int("bytes", len(body)).
		Dur("elapsed", elapsed).
		Msg("Page fetched")
	return body, nil
}

// BuildURL merges params into rawURL's query string.
func BuildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: scheme and host required", rawURL)
	}
	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// freshClientGetter opens a new client for every attempt and closes its
// idle connections afterwards.
type freshClientGetter struct {
	opts Options
}

func (g freshClientGetter) Get(ctx context.Context, rawURL string, header http.Header) (string, error) {
	tr, err := transport.New(g.opts.Transport)
	if err != nil {
		return "", retry.Permanent(err)
	}
	client := &http.Client{Transport: tr, Jar: g.opts.Jar}
	defer client.CloseIdleConnections()

	return Do(ctx, client, rawURL, header)
}
