// Package transport builds the http.Transport shared by fetchers and sessions.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/proxy"
)

// Options configures a transport.
type Options struct {
	// Proxy is a single upstream proxy (http, https, socks5). Empty means direct.
	Proxy string

	// Fingerprint dials TLS with a Chrome ClientHello instead of Go's.
	// Only applies to connections that are not tunnelled through an HTTP proxy.
	Fingerprint bool

	// DialTimeout bounds TCP connection setup.
	DialTimeout time.Duration
}

// chromeH1Spec is a Chrome ClientHello with ALPN restricted to http/1.1, since
// http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// New returns a keep-alive transport routed through opts.Proxy.
func New(opts Options) (*http.Transport, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	t := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   !opts.Fingerprint,
	}

	if err := proxy.Apply(t, opts.Proxy); err != nil {
		return nil, err
	}

	if opts.Fingerprint {
		dial := t.DialContext
		t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChrome(ctx, dial, network, addr)
		}
		log.Debug().Msg("Chrome TLS fingerprint enabled")
	}

	return t, nil
}

func dialChrome(ctx context.Context, dial func(context.Context, string, string) (net.Conn, error), network, addr string) (net.Conn, error) {
	conn, err := dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	uconn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := uconn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply tls spec: %w", err)
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return uconn, nil
}
