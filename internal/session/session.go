// Package session holds the network resources a plugin keeps open across
// fetches. A run closes whatever session its plugin opened before finishing.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/fetch"
	"github.com/law-makers/scrape/internal/transport"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("session closed")

// Session is a reusable connection context. Close must be idempotent.
type Session interface {
	fetch.Getter
	Close() error
}

// Options configures an HTTP session.
type Options struct {
	Transport transport.Options

	// Cookies are seeded into the jar for CookieURL.
	Cookies   []*http.Cookie
	CookieURL string

	Timeout time.Duration
}

// HTTP is a keep-alive client with its own cookie jar.
type HTTP struct {
	client *http.Client

	mu     sync.Mutex
	closed bool
}

// NewHTTP opens an HTTP session.
func NewHTTP(opts Options) (*HTTP, error) {
	tr, err := transport.New(opts.Transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if len(opts.Cookies) > 0 {
		u, err := url.Parse(opts.CookieURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("cookies require a valid URL, got %q", opts.CookieURL)
		}
		jar.SetCookies(u, opts.Cookies)
		log.Debug().Int("cookies", len(opts.Cookies)).Str("host", u.Host).Msg("Session cookies injected")
	}

	return &HTTP{
		client: &http.Client{
			Transport: tr,
			Jar:       jar,
			Timeout:   opts.Timeout,
		},
	}, nil
}

// Get issues a GET over the session's connections.
func (s *HTTP) Get(ctx context.Context, rawURL string, header http.Header) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	return fetch.Do(ctx, s.client, rawURL, header)
}

// Close releases idle connections. Calling it more than once is harmless.
func (s *HTTP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	log.Debug().Msg("HTTP session closed")
	return nil
}

// Closed reports whether Close has been called.
func (s *HTTP) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
