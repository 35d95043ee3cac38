// internal/session/browser.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/retry"
)

// BrowserOptions configures a headless browser session.
type BrowserOptions struct {
	Headless  bool
	UserAgent string
	Proxy     string
	Cookies   []*http.Cookie

	// ChromePath overrides browser discovery.
	ChromePath string

	// WaitSelector is awaited after each navigation. Defaults to "body".
	WaitSelector string
}

// Browser renders pages in a single Chrome tab.
type Browser struct {
	opts BrowserOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowser starts Chrome and warms up a tab.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.WaitSelector == "" {
		opts.WaitSelector = "body"
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
	}
	path := opts.ChromePath
	if path == "" {
		path = FindChrome()
	}
	if path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	// The browser outlives the call that opens it; only Close stops it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	warmup := chromedp.Tasks{network.Enable()}
	if len(opts.Cookies) > 0 {
		warmup = append(warmup, setCookies(opts.Cookies))
	}
	warmup = append(warmup, chromedp.Navigate("about:blank"))

	if err := chromedp.Run(browserCtx, warmup); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Msg("Browser session ready")
	return b, nil
}

// Get navigates to rawURL and returns the rendered document.
func (b *Browser) Get(ctx context.Context, rawURL string, header http.Header) (string, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	// Tie the tab to the attempt's deadline without cancelling the browser.
	runCtx, cancel := context.WithCancel(b.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	extra := make(network.Headers)
	for k, vs := range header {
		// The browser sets its own User-Agent.
		if len(vs) == 0 || http.CanonicalHeaderKey(k) == "User-Agent" {
			continue
		}
		extra[k] = vs[0]
	}

	var doc docStatus
	chromedp.ListenTarget(runCtx, doc.observe)

	var html string
	start := time.Now()
	err := chromedp.Run(runCtx,
		network.SetExtraHTTPHeaders(extra),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady(b.opts.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("browser navigation failed: %w", err)
	}
	if err := statusError(doc.get(), rawURL); err != nil {
		return "", err
	}

	log.Debug().
		Str("url", rawURL).
		Dur("elapsed", time.Since(start)).
		Msg("Page rendered")
	return html, nil
}

// docStatus records the status of the first document response on a tab.
// Events arrive on the browser's event goroutine.
type docStatus struct {
	mu     sync.Mutex
	status int64
}

func (d *docStatus) observe(ev interface{}) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	if d.status == 0 {
		d.status = resp.Response.Status
	}
	d.mu.Unlock()
}

func (d *docStatus) get() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// statusError reports a non-2xx document status as a retry.HTTPError.
// A zero status means none was observed and is not an error.
func statusError(status int64, rawURL string) error {
	if status == 0 || (status >= 200 && status <= 299) {
		return nil
	}
	code := int(status)
	return retry.NewHTTPError(code, http.StatusText(code), rawURL)
}

// Close shuts the browser down. Calling it more than once is harmless.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	log.Debug().Msg("Browser session closed")
	return nil
}

func setCookies(cookies []*http.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HttpOnly).
				WithSecure(c.Secure)
			if !c.Expires.IsZero() {
				exp := cdp.TimeSinceEpoch(c.Expires)
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}
