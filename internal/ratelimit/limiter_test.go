package ratelimit

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Window:     time.Minute,
		MaxActions: 3,
		Cooldown:   10 * time.Second,
	}
}

// fakeClock is a manually advanced clock for deterministic limiter tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiter_WindowFillsThenDenies(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(testConfig(), clock.now)

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("call %d: expected allow", i+1)
		}
	}
	if l.Allow("k") {
		t.Fatal("fourth call within window must be denied")
	}
	if !l.IsLimited("k") {
		t.Error("IsLimited should report true after the window fills")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestLimiter_CooldownExpiry(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	l := NewLimiterWithClock(cfg, clock.now)

	for i := 0; i < 3; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("expected denial that starts the cooldown")
	}

	// Still inside the cooldown.
	clock.advance(5 * time.Second)
	if l.Allow("k") {
		t.Fatal("expected denial during cooldown")
	}

	// Cooldown over; capacity is restored immediately.
	clock.advance(cfg.Cooldown)
	if !l.Allow("k") {
		t.Fatal("expected allow after cooldown elapsed")
	}
}

func TestLimiter_DenialDuringCooldownDoesNotExtendIt(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	l := NewLimiterWithClock(cfg, clock.now)

	for i := 0; i < 4; i++ {
		l.Allow("k") // fourth call starts the cooldown
	}
	first := l.RetryAfter("k")

	clock.advance(3 * time.Second)
	l.Allow("k") // denied, must not push cooldownUntil forward
	second := l.RetryAfter("k")

	if second >= first {
		t.Errorf("cooldown extended by a denial: %v -> %v", first, second)
	}
}

func TestLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(testConfig(), clock.now)

	for i := 0; i < 4; i++ {
		l.Allow("k")
	}
	if !l.IsLimited("k") {
		t.Fatal("expected limited before reset")
	}

	l.Reset("k")
	if !l.Allow("k") {
		t.Error("expected allow immediately after Reset")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(testConfig(), clock.now)

	for i := 0; i < 4; i++ {
		l.Allow("a")
	}
	if !l.Allow("b") {
		t.Error("key b must not be affected by key a's bucket")
	}
}

func TestLimiter_SlidingWindowPrunes(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	l := NewLimiterWithClock(cfg, clock.now)

	l.Allow("k")
	l.Allow("k")
	clock.advance(cfg.Window + time.Second)

	// Old timestamps aged out; full capacity again.
	if got := l.Remaining("k"); got != cfg.MaxActions {
		t.Errorf("Remaining = %d, want %d", got, cfg.MaxActions)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	l := NewLimiterWithClock(cfg, clock.now)

	if got := l.RetryAfter("k"); got != 0 {
		t.Errorf("RetryAfter on fresh key = %v, want 0", got)
	}

	for i := 0; i < 4; i++ {
		l.Allow("k")
	}
	if got := l.RetryAfter("k"); got != cfg.Cooldown {
		t.Errorf("RetryAfter during cooldown = %v, want %v", got, cfg.Cooldown)
	}
}
