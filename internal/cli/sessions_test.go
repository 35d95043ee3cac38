package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/scrape/internal/auth"
)

func TestPrintSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &auth.SessionData{
		Name:      "shop",
		URL:       "https://shop.test/",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(48 * time.Hour),
		Cookies: []auth.Cookie{
			{Name: "sid", Value: "secret", Domain: ".shop.test", Path: "/", HTTPOnly: true, Secure: true},
			{Name: "pref", Value: "dark", Domain: ".shop.test", Path: "/", Expires: float64(now.Add(-time.Minute).Unix())},
		},
		Headers: map[string]string{"X-B": "2", "X-A": "1"},
	}

	var out bytes.Buffer
	printSession(&out, data, now)
	got := out.String()

	if strings.Contains(got, "secret") {
		t.Errorf("Expected cookie values to be hidden, got:\n%s", got)
	}
	if !strings.Contains(got, "sid  .shop.test/  httponly,secure,session") {
		t.Errorf("Expected sid flags in output, got:\n%s", got)
	}
	if !strings.Contains(got, "pref  .shop.test/  expired") {
		t.Errorf("Expected expired pref cookie in output, got:\n%s", got)
	}
	if !strings.Contains(got, "First cookie expiry") {
		t.Errorf("Expected earliest cookie expiry line, got:\n%s", got)
	}
	if strings.Index(got, "X-A: 1") > strings.Index(got, "X-B: 2") {
		t.Errorf("Expected headers sorted by name, got:\n%s", got)
	}
}

func TestSessionStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expires time.Time
		want    string
	}{
		{time.Time{}, "no expiry"},
		{now.Add(-time.Hour), "expired"},
		{now.Add(3 * time.Hour), "valid 3h0m0s"},
	}

	for _, tt := range tests {
		got := sessionStatus(&auth.SessionData{ExpiresAt: tt.expires}, now)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Expected status containing %q, got %q", tt.want, got)
		}
	}
}
