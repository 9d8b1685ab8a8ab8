package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAllow_Unlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("100") {
			t.Fatal("unlimited limiter should always allow")
		}
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("100") {
		t.Fatal("nil limiter should always allow")
	}
}

func TestAllow_PerChannel(t *testing.T) {
	l := New(2)

	if !l.Allow("A") || !l.Allow("A") {
		t.Fatal("first two calls should be allowed")
	}
	if l.Allow("A") {
		t.Fatal("third call should be denied")
	}

	// Another channel has its own bucket.
	if !l.Allow("B") {
		t.Fatal("independent channel should be allowed")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := New(10)

	for i := 0; i < 10; i++ {
		l.Allow("A")
	}
	if l.Allow("A") {
		t.Fatal("should be denied after exhausting bucket")
	}

	time.Sleep(200 * time.Millisecond)

	if !l.Allow("A") {
		t.Fatal("should be allowed after refill")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(1)
	l.Allow("A")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "A"); err == nil {
		t.Fatal("Wait should return error when context is cancelled")
	}
}

func TestWait_EventuallyAllowed(t *testing.T) {
	l := New(20)
	for i := 0; i < 20; i++ {
		l.Allow("A")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, "A"); err != nil {
		t.Fatalf("Wait should succeed, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Wait should have blocked for at least some time")
	}
}

func TestReset(t *testing.T) {
	l := New(1)

	l.Allow("A")
	if l.Allow("A") {
		t.Fatal("should be denied")
	}
	l.Reset("A")
	if !l.Allow("A") {
		t.Fatal("should be allowed after reset")
	}
}

func TestConcurrentAccess(t *testing.T) {
	l := New(100)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("A")
		}()
	}
	wg.Wait()
	close(allowed)

	trueCount := 0
	for v := range allowed {
		if v {
			trueCount++
		}
	}
	if trueCount < 90 || trueCount > 101 {
		t.Fatalf("expected about 100 allowed, got %d", trueCount)
	}
}
