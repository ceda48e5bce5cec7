package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
}

func TestLimiter_Allow(t *testing.T) {
	clk := newClock()
	lim := newWithClock(Config{RequestsPerSecond: 10, Burst: 5}, clk.Now)

	// Should allow up to burst count immediately
	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("expected 5 allowed from burst, got %d", allowed)
	}
}

func TestLimiter_Refill(t *testing.T) {
	clk := newClock()
	lim := newWithClock(Config{RequestsPerSecond: 2, Burst: 2}, clk.Now)

	for lim.Allow() {
	}

	clk.Advance(500 * time.Millisecond)
	if !lim.Allow() {
		t.Error("expected token to be available after refill period")
	}
	if lim.Allow() {
		t.Error("expected only one token after half a second")
	}
}

func TestLimiter_BurstCap(t *testing.T) {
	clk := newClock()
	lim := newWithClock(Config{RequestsPerSecond: 1000, Burst: 3}, clk.Now)

	// Even after a long idle period, tokens should not exceed burst
	clk.Advance(time.Minute)

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("burst cap: got %d allowed, want 3", allowed)
	}
}

func TestLimiter_Cooldown(t *testing.T) {
	clk := newClock()
	lim := newWithClock(Config{RequestsPerSecond: 10, Burst: 1, Cooldown: 2 * time.Second}, clk.Now)

	if !lim.Allow() {
		t.Fatal("first request should pass")
	}
	if lim.Allow() {
		t.Fatal("second request should be blocked")
	}

	// refilled but still cooling down
	clk.Advance(time.Second)
	if lim.Allow() {
		t.Error("expected rejection during cooldown")
	}

	clk.Advance(1500 * time.Millisecond)
	if !lim.Allow() {
		t.Error("expected request to pass after cooldown")
	}
}

func TestLimiter_Wait_ContextCanceled(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 0.001, Burst: 1})

	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := lim.Wait(ctx); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 100})

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Allow() {
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if total < 100 || total > 101 {
		t.Errorf("expected about burst allowed, got %d", total)
	}
}

func TestManager_GetLimiter(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 10, Burst: 5})

	l1 := mgr.GetLimiter("10.0.0.1")
	l2 := mgr.GetLimiter("10.0.0.1")
	l3 := mgr.GetLimiter("10.0.0.2")

	if l1 != l2 {
		t.Error("same key should return the same limiter instance")
	}
	if l1 == l3 {
		t.Error("different keys should return different limiter instances")
	}
}

func TestManager_AllowIsPerKey(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 0.001, Burst: 1})

	if !mgr.Allow("a") {
		t.Fatal("first request for a should pass")
	}
	if mgr.Allow("a") {
		t.Error("second request for a should be limited")
	}
	if !mgr.Allow("b") {
		t.Error("b has its own bucket")
	}
}

func TestManager_Prune(t *testing.T) {
	clk := newClock()
	mgr := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	mgr.now = clk.Now

	mgr.Allow("old")
	clk.Advance(10 * time.Minute)
	mgr.Allow("fresh")

	if n := mgr.Prune(5 * time.Minute); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if mgr.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", mgr.Len())
	}
}

func TestManager_ConcurrentGetLimiter(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 10, Burst: 5})

	var wg sync.WaitGroup
	limiters := make([]*Limiter, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			limiters[idx] = mgr.GetLimiter("shared-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 20; i++ {
		if limiters[i] != limiters[0] {
			t.Fatalf("limiter %d differs from first instance", i)
		}
	}
}
