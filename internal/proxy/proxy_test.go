package proxy

import (
	"net/http"
	"testing"
)

func TestParse(t *testing.T) {
	valid := map[string]string{
		"http://localhost:8080":   "http",
		"localhost:3128":          "http",
		"https://proxy.test:443":  "https",
		"socks5://127.0.0.1:1080": "socks5",
	}
	for in, scheme := range valid {
		u, err := Parse(in)
		if err != nil {
			t.Fatalf("Expected %q to parse, got %v", in, err)
		}
		if u.Scheme != scheme {
			t.Errorf("Expected scheme %s for %q, got %s", scheme, in, u.Scheme)
		}
	}

	invalid := []string{"", "ftp://proxy:21", "http://"}
	for _, in := range invalid {
		if _, err := Parse(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestApply_HTTP(t *testing.T) {
	tr := &http.Transport{}
	if err := Apply(tr, "http://localhost:8080"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tr.Proxy == nil {
		t.Fatal("Expected Proxy func to be set")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	u, err := tr.Proxy(req)
	if err != nil || u == nil || u.Host != "localhost:8080" {
		t.Errorf("Expected proxy localhost:8080, got %v (%v)", u, err)
	}
}

func TestApply_SOCKS(t *testing.T) {
	tr := &http.Transport{}
	if err := Apply(tr, "socks5://127.0.0.1:1080"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tr.Proxy != nil {
		t.Error("Expected no HTTP proxy for socks5")
	}
	if tr.DialContext == nil {
		t.Error("Expected DialContext to be set for socks5")
	}
}

func TestApply_Empty(t *testing.T) {
	tr := &http.Transport{}
	if err := Apply(tr, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tr.Proxy != nil || tr.DialContext != nil {
		t.Error("Expected transport to be untouched")
	}
}
