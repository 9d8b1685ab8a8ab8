// Package ratelimit paces outbound deliveries with one token bucket per
// destination channel.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements token bucket rate limiting per destination channel.
// Every bucket refills at the same rate and holds at most one second of tokens.
type Limiter struct {
	mu      sync.Mutex
	rate    float64 // tokens per second
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New creates a limiter granting perSecond operations per channel.
// A rate of 0 or less means unlimited.
func New(perSecond int) *Limiter {
	return &Limiter{
		rate:    float64(perSecond),
		buckets: make(map[string]*bucket),
	}
}

// Unlimited reports whether the limiter never delays.
func (l *Limiter) Unlimited() bool { return l == nil || l.rate <= 0 }

// Allow checks whether an operation on channelID may proceed now.
func (l *Limiter) Allow(channelID string) bool {
	if l.Unlimited() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(channelID)
	b.refill(l.rate)

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until an operation on channelID may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, channelID string) error {
	if l.Unlimited() {
		return nil
	}

	interval := time.Duration(float64(time.Second) / l.rate)
	for {
		if l.Allow(channelID) {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears the state of one channel.
func (l *Limiter) Reset(channelID string) {
	if l.Unlimited() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, channelID)
}

func (l *Limiter) bucketFor(channelID string) *bucket {
	b, ok := l.buckets[channelID]
	if !ok {
		b = &bucket{
			tokens:   l.rate, // start full
			lastFill: time.Now(),
		}
		l.buckets[channelID] = b
	}
	return b
}

func (b *bucket) refill(rate float64) {
	now := time.Now()
	b.tokens += now.Sub(b.lastFill).Seconds() * rate
	if b.tokens > rate {
		b.tokens = rate
	}
	b.lastFill = now
}
