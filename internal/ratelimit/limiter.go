// Package ratelimit implements the in-process burst guard in front of the
// chat endpoints. It is deliberately soft: authoritative rate limiting lives
// at the network edge with its own state, this limiter only stops accidental
// bursts and double-submits within one process.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the sliding-window parameters.
type Config struct {
	Window     time.Duration // how far back actions count
	MaxActions int           // admitted actions per window
	Cooldown   time.Duration // lockout after the window fills
}

// DefaultConfig matches the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Window:     time.Minute,
		MaxActions: 10,
		Cooldown:   10 * time.Second,
	}
}

type bucket struct {
	timestamps    []time.Time
	cooldownUntil time.Time
}

// Limiter is a sliding-window-with-cooldown limiter keyed by caller identity
// (or IP for unauthenticated endpoints). Buckets are created lazily and pruned
// on every touch, so memory stays bounded by the number of active keys.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
	now     func() time.Time
}

// NewLimiter creates a limiter with the given config.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

// NewLimiterWithClock creates a limiter with an injected clock for tests.
func NewLimiterWithClock(cfg Config, now func() time.Time) *Limiter {
	l := NewLimiter(cfg)
	l.now = now
	return l
}

// Allow records one action for key if capacity remains. Filling the window
// starts the cooldown; denials during an active cooldown do not extend it.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.touch(key, now)

	if now.Before(b.cooldownUntil) {
		return false
	}
	if len(b.timestamps) >= l.cfg.MaxActions {
		// The cooldown replaces the window as the penalty: the bucket is
		// cleared so capacity is restored the moment the cooldown ends.
		b.cooldownUntil = now.Add(l.cfg.Cooldown)
		b.timestamps = nil
		return false
	}
	b.timestamps = append(b.timestamps, now)
	return true
}

// Remaining returns how many actions key may still take in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.touch(key, now)
	if now.Before(b.cooldownUntil) {
		return 0
	}
	remaining := l.cfg.MaxActions - len(b.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsLimited reports whether key is currently denied, without recording an action.
func (l *Limiter) IsLimited(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.touch(key, now)
	return now.Before(b.cooldownUntil) || len(b.timestamps) >= l.cfg.MaxActions
}

// Reset clears all state for key, ending any cooldown immediately.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// RetryAfter returns how long key must wait before the next action can
// succeed. Zero means it may act now.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.touch(key, now)
	if now.Before(b.cooldownUntil) {
		return b.cooldownUntil.Sub(now)
	}
	if len(b.timestamps) >= l.cfg.MaxActions {
		// The oldest recorded action ages out of the window first.
		return b.timestamps[0].Add(l.cfg.Window).Sub(now)
	}
	return 0
}

// touch returns the bucket for key with expired timestamps pruned.
// Must be called with mu held.
func (l *Limiter) touch(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.cfg.Window)
	kept := b.timestamps[:0]
	for _, ts := range b.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.timestamps = kept
	return b
}
