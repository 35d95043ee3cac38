package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPSession_ReusesConnectionAndSendsCookies(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("<html>" + c.Value + "</html>"))
	}))
	srv.Config.ConnState = func(c net.Conn, s http.ConnState) {
		if s == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	s, err := NewHTTP(Options{
		Cookies:   []*http.Cookie{{Name: "sid", Value: "abc", Path: "/"}},
		CookieURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		body, err := s.Get(context.Background(), srv.URL+"/page", nil)
		if err != nil {
			t.Fatalf("Expected no error on request %d, got %v", i, err)
		}
		if !strings.Contains(body, "abc") {
			t.Errorf("Expected cookie value in body, got %q", body)
		}
	}
	if n := conns.Load(); n != 1 {
		t.Errorf("Expected 1 connection, got %d", n)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Expected no error on close, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected second close to be harmless, got %v", err)
	}
	if !s.Closed() {
		t.Errorf("Expected session to report closed")
	}
	if _, err := s.Get(context.Background(), srv.URL, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}

func TestNewHTTP_CookiesRequireURL(t *testing.T) {
	_, err := NewHTTP(Options{Cookies: []*http.Cookie{{Name: "sid", Value: "abc"}}})
	if err == nil {
		t.Errorf("Expected error for cookies without a URL")
	}
}

func TestFindChrome_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRAPE_CHROME_PATH", path)

	if got := FindChrome(); got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
}

func TestChromeCandidates(t *testing.T) {
	darwin := chromeCandidates("darwin", "/Users/me")
	if last := darwin[len(darwin)-1]; !strings.HasPrefix(last, "/Users/me/Applications") {
		t.Errorf("Expected per-user app path last, got %s", last)
	}

	linux := chromeCandidates("linux", "")
	if linux[0] != "/usr/bin/google-chrome-stable" {
		t.Errorf("Expected google-chrome-stable first, got %s", linux[0])
	}
	for _, p := range linux {
		if strings.Contains(p, "flatpak") {
			t.Errorf("Expected no home-relative paths without HOME, got %s", p)
		}
	}
}
