package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestDomainLimiter_PerHostBuckets(t *testing.T) {
	dl := NewDomainLimiter(1, 1)

	if !dl.Allow("https://a.test/x") {
		t.Fatal("Expected first request to a.test to be allowed")
	}
	if dl.Allow("https://a.test/y") {
		t.Error("Expected second immediate request to a.test to be throttled")
	}
	if !dl.Allow("https://b.test/") {
		t.Error("Expected b.test to have its own bucket")
	}
}

func TestDomainLimiter_WaitHonoursContext(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	dl.Allow("https://slow.test/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := dl.Wait(ctx, "https://slow.test/"); err == nil {
		t.Error("Expected Wait to fail once the context expires")
	}
}

func TestDomainLimiter_InvalidURL(t *testing.T) {
	dl := NewDomainLimiter(1, 1)
	if err := dl.Wait(context.Background(), "://bad"); err != nil {
		t.Errorf("Expected invalid URL to pass through, got %v", err)
	}
}
