package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://www.instagram.com/p/abc"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different domain should also work
	if err := limiter.Wait(ctx, "https://www.tiktok.com/@u/video/1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitBlocksOnExhaustedBurst(t *testing.T) {
	limiter := NewLimiter(20, 1) // 20 rps, burst 1, so second call waits ~50ms
	ctx := context.Background()
	url := "https://www.youtube.com/watch?v=x"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, url); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected second wait to block, returned after %v", elapsed)
	}
}

func TestLimiter_DomainsAreIndependent(t *testing.T) {
	limiter := NewLimiter(0.1, 1) // very slow refill
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://vk.com/video1"); err != nil {
		t.Fatalf("first domain wait failed: %v", err)
	}

	// A different domain has its own bucket and must not wait.
	done := make(chan error, 1)
	go func() { done <- limiter.Wait(ctx, "https://music.yandex.ru/track/1") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("other domain wait failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("other domain blocked on the first domain's budget")
	}
}

func TestExtractDomain(t *testing.T) {
	domain, err := extractDomain("https://www.instagram.com/reel/xyz")
	if err != nil {
		t.Fatalf("extractDomain failed: %v", err)
	}
	if domain != "www.instagram.com" {
		t.Errorf("expected www.instagram.com, got %s", domain)
	}

	if _, err := extractDomain("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
