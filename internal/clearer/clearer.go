// Package clearer asks the listings backend to drop a plugin's previous
// results before a new run.
package clearer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/retry"
)

// DefaultTimeout bounds a clear request.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client posts clear requests to {BaseURL}/clear_data/.
type Client struct {
	http    *resty.Client
	baseURL string
}

type clearRequest struct {
	Parser string `json:"parser"`
}

// New creates a Client. An empty BaseURL yields a client whose Clear is a no-op.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{
		http:    client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Enabled reports whether a backend is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Endpoint returns the clear URL.
func (c *Client) Endpoint() string {
	return c.baseURL + "/clear_data/"
}

// Clear requests removal of the data stored under parser. Any 2xx status
// is success; everything else is returned as an error for the caller to log.
func (c *Client) Clear(ctx context.Context, parser string) error {
	if !c.Enabled() {
		return nil
	}

	log.Debug().Str("parser", parser).Str("url", c.Endpoint()).Msg("Clearing previous data")

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(clearRequest{Parser: parser}).
		Post(c.Endpoint())
	if err != nil {
		return fmt.Errorf("clear request failed: %w", err)
	}
	if !res.IsSuccess() {
		return retry.NewHTTPError(res.StatusCode(), res.Status(), c.Endpoint())
	}

	log.Info().Str("parser", parser).Msg("Previous data cleared")
	return nil
}
