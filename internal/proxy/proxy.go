// Package proxy routes a transport through a single upstream proxy.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	xproxy "golang.org/x/net/proxy"
)

// Parse validates a proxy address. Bare host:port values are treated as
// plain HTTP proxies.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", raw)
	}
	return u, nil
}

// IsSOCKS reports whether u is a SOCKS5 proxy.
func IsSOCKS(u *url.URL) bool {
	return u != nil && (u.Scheme == "socks5" || u.Scheme == "socks5h")
}

// Apply configures t to send every request through raw. An empty raw
// leaves t untouched.
func Apply(t *http.Transport, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := Parse(raw)
	if err != nil {
		return err
	}

	if !IsSOCKS(u) {
		t.Proxy = http.ProxyURL(u)
		return nil
	}

	dialer, err := Dialer(u, &net.Dialer{})
	if err != nil {
		return err
	}
	t.Proxy = nil
	t.DialContext = dialer
	return nil
}

// Dialer returns a context dialer that tunnels through the SOCKS5 proxy u.
func Dialer(u *url.URL, forward *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	d, err := xproxy.FromURL(u, forward)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", u.Host, err)
	}
	if cd, ok := d.(xproxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}
