// Package engine defines the contract every site scraper implements and the
// default fetch-then-parse behaviour they share.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/fetch"
	"github.com/law-makers/scrape/internal/session"
	"github.com/law-makers/scrape/pkg/models"
)

// Plugin is the interface that all site scrapers must implement
type Plugin interface {
	// Identify returns the plugin's stable, non-empty identity
	Identify() models.Identity

	// Run performs one scrape and returns the extracted record, or nil when
	// the page could not be retrieved
	Run(ctx context.Context) (models.Record, error)

	// ParsePage extracts a record from a fetched document
	ParsePage(ctx context.Context, html string) (models.Record, error)
}

// PageParser is the parse step used by Base.RunPage.
type PageParser interface {
	ParsePage(ctx context.Context, html string) (models.Record, error)
}

// SessionHolder is implemented by plugins that keep a network session open
// across fetches. The controller closes it when the run ends.
type SessionHolder interface {
	Session() session.Session
}

// Env is everything a plugin factory receives.
type Env struct {
	Config  models.RunConfig
	Fetcher *fetch.Fetcher

	// Cookies come from a saved session and apply to Config.TargetURL.
	Cookies []*http.Cookie

	// Session and Browser configure OpenSession and OpenBrowser.
	Session session.Options
	Browser session.BrowserOptions
}

// Base supplies the default run behaviour. Plugins embed *Base and pass
// themselves as the parser so that RunPage reaches their ParsePage.
type Base struct {
	name       string
	defaultURL string
	env        Env
	parser     PageParser

	mu      sync.Mutex
	session session.Session
}

// NewBase creates a Base. parser may be nil, in which case Run reaches the
// unimplemented Base.ParsePage.
func NewBase(name string, env Env, defaultURL string, parser PageParser) *Base {
	if env.Fetcher == nil {
		env.Fetcher = fetch.New(fetch.Options{Headers: env.Config.Headers})
	}
	return &Base{
		name:       name,
		defaultURL: defaultURL,
		env:        env,
		parser:     parser,
	}
}

// Identify returns the name given to NewBase.
func (b *Base) Identify() models.Identity {
	return models.Identity{Name: b.name}
}

// Env returns the environment the plugin was built with.
func (b *Base) Env() Env {
	return b.env
}

// TargetURL is the configured target, or the plugin's default.
func (b *Base) TargetURL() string {
	if b.env.Config.TargetURL != "" {
		return b.env.Config.TargetURL
	}
	return b.defaultURL
}

// Run fetches TargetURL and parses it with the parser given to NewBase.
func (b *Base) Run(ctx context.Context) (models.Record, error) {
	var parser PageParser = b
	if b.parser != nil {
		parser = b.parser
	}
	return b.RunPage(ctx, parser)
}

// ParsePage is the unimplemented default.
func (b *Base) ParsePage(ctx context.Context, html string) (models.Record, error) {
	return nil, NewEngineError(ErrCodeNotImplemented, b.name, "plugin does not define a parse step", ErrParseNotImplemented)
}

// RunPage fetches TargetURL and hands the document to parser. When every
// attempt fails it returns (nil, nil).
func (b *Base) RunPage(ctx context.Context, parser PageParser) (models.Record, error) {
	if parser == nil {
		return nil, NewEngineError(ErrCodeMissingCapability, b.name, "no parse step supplied", ErrMissingCapability)
	}

	if b.env.Config.Render && b.Session() == nil {
		if _, err := b.OpenBrowser(ctx); err != nil {
			return nil, err
		}
	}

	target := b.TargetURL()
	if target == "" {
		return nil, NewEngineError(ErrCodeValidation, b.name, "no target URL configured", nil).
			WithDetail("render", b.env.Config.Render)
	}

	html, ok, err := b.Fetch(ctx, target, b.env.Config.Params)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().
			Str("plugin", b.name).
			Str("url", target).
			Msg("No page retrieved, nothing to parse")
		return nil, nil
	}

	return parser.ParsePage(ctx, html)
}

// Fetch retrieves rawURL through the open session, or with a fresh
// connection per attempt when there is none.
func (b *Base) Fetch(ctx context.Context, rawURL string, params url.Values) (string, bool, error) {
	f := b.env.Fetcher
	if s := b.Session(); s != nil {
		f = f.WithGetter(s)
	}
	return f.Fetch(ctx, rawURL, params)
}

// Session returns the open session, if any.
func (b *Base) Session() session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// OpenSession opens a keep-alive HTTP session owned by the plugin. An
// already open session is returned as is.
func (b *Base) OpenSession() (session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return b.session, nil
	}

	opts := b.env.Session
	if len(opts.Cookies) == 0 && len(b.env.Cookies) > 0 {
		opts.Cookies = b.env.Cookies
		opts.CookieURL = b.TargetURL()
	}

	s, err := session.NewHTTP(opts)
	if err != nil {
		return nil, NewEngineError(ErrCodeSessionError, b.name, "failed to open HTTP session", err).
			WithDetail("proxy", opts.Transport.Proxy)
	}
	b.session = s
	log.Debug().Str("plugin", b.name).Msg("HTTP session opened")
	return s, nil
}

// OpenBrowser opens a headless browser session owned by the plugin. A
// browser that cannot start is reported as a missing capability.
func (b *Base) OpenBrowser(ctx context.Context) (session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return b.session, nil
	}

	opts := b.env.Browser
	if opts.UserAgent == "" {
		opts.UserAgent = b.env.Fetcher.UserAgent()
	}
	if opts.Proxy == "" {
		opts.Proxy = b.env.Config.Proxy
	}
	if len(opts.Cookies) == 0 {
		opts.Cookies = b.env.Cookies
	}

	s, err := session.NewBrowser(ctx, opts)
	if err != nil {
		return nil, NewEngineError(ErrCodeMissingCapability, b.name, "browser unavailable",
			fmt.Errorf("%w: %w", ErrMissingCapability, err)).
			WithDetail("headless", opts.Headless)
	}
	b.session = s
	log.Debug().Str("plugin", b.name).Msg("Browser session opened")
	return s, nil
}
