package auth

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/session"
)

// LoginOptions configures the interactive login behavior
type LoginOptions struct {
	SessionName string
	URL         string
	// WaitSelector marks a logged-in page (e.g., "#dashboard"). Without it
	// Confirm is called.
	WaitSelector string
	Timeout      time.Duration
	Headers      map[string]string
	ChromePath   string
	// RemoteDebuggingPort exposes DevTools for headless environments.
	RemoteDebuggingPort int

	// Confirm blocks until the user reports the login as done.
	Confirm func() error
}

// InteractiveLogin opens a visible browser on opts.URL and captures the
// cookies once the user has logged in.
func InteractiveLogin(ctx context.Context, opts LoginOptions) (*SessionData, error) {
	if opts.SessionName == "" {
		return nil, ErrEmptyName
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if os.Getenv("DISPLAY") == "" && opts.RemoteDebuggingPort == 0 {
		return nil, fmt.Errorf("interactive login requires a display server (DISPLAY not set); " +
			"use 'scrape sessions import <name> --url=<url>' or --remote-debug instead")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", false),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1280, 720),
	}
	path := opts.ChromePath
	if path == "" {
		path = session.FindChrome()
	}
	if path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}
	if opts.RemoteDebuggingPort > 0 {
		allocOpts = append(allocOpts,
			chromedp.Flag("remote-debugging-port", strconv.Itoa(opts.RemoteDebuggingPort)),
			chromedp.Flag("remote-debugging-address", "0.0.0.0"),
		)
		log.Info().Int("port", opts.RemoteDebuggingPort).Msg("Remote debugging enabled")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	log.Info().Str("session", opts.SessionName).Str("url", opts.URL).Msg("Opening browser for login")
	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(opts.URL)); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	if opts.WaitSelector != "" {
		log.Info().Str("selector", opts.WaitSelector).Msg("Waiting for login completion")
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			return nil, fmt.Errorf("login timeout or failed: %w", err)
		}
	} else if opts.Confirm != nil {
		if err := opts.Confirm(); err != nil {
			return nil, err
		}
	}

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found, login may have failed")
	}
	log.Info().Int("cookie_count", len(cookies)).Msg("Cookies extracted")

	captured := make([]Cookie, len(cookies))
	for i, c := range cookies {
		captured[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}

	return &SessionData{
		Name:      opts.SessionName,
		URL:       opts.URL,
		Cookies:   captured,
		Headers:   opts.Headers,
		CreatedAt: time.Now(),
		ExpiresAt: EarliestExpiry(captured),
	}, nil
}
