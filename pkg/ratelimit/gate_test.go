package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep records the wait without advancing the clock.
func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newTestGate(t *testing.T, cfg Config, clock *fakeClock) *Gate {
	t.Helper()
	g, err := NewGate(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	g.now = clock.Now
	g.sleep = clock.Sleep
	return g
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"minimums", Config{MaxRequestsPerInterval: 1, IntervalSeconds: 1}, false},
		{"zero requests", Config{MaxRequestsPerInterval: 0, IntervalSeconds: 1}, true},
		{"zero interval", Config{MaxRequestsPerInterval: 4, IntervalSeconds: 0}, true},
		{"negative queue", Config{MaxRequestsPerInterval: 4, IntervalSeconds: 1, MaxQueuedRetryAttempts: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.cfg, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestGate_AdmitsLimitImmediately(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 4, IntervalSeconds: 1}, clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i+1, err)
		}
	}
	if got := len(clock.Sleeps()); got != 0 {
		t.Fatalf("first 4 calls slept %d times, want 0", got)
	}

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() #5 error = %v", err)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != time.Second {
		t.Errorf("5th call sleeps = %v, want [1s]", sleeps)
	}
}

func TestGate_FIFOReservations(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 2, IntervalSeconds: 1}, clock)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	want := []time.Duration{time.Second, time.Second, 2 * time.Second, 2 * time.Second}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGate_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 2, IntervalSeconds: 1}, clock)
	ctx := context.Background()

	_ = g.Acquire(ctx)
	clock.Advance(600 * time.Millisecond)
	_ = g.Acquire(ctx)
	clock.Advance(500 * time.Millisecond)

	// The first ticket has expired, so one slot is free.
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := len(clock.Sleeps()); got != 0 {
		t.Fatalf("slept %d times, want 0", got)
	}

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 500*time.Millisecond {
		t.Errorf("sleeps = %v, want [500ms]", sleeps)
	}
}

func TestGate_ConcurrentCallersNeverOverAdmit(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 5, IntervalSeconds: 1}, clock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	counts := make(map[time.Duration]int)
	for _, d := range clock.Sleeps() {
		counts[d]++
	}
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		if counts[d] != 5 {
			t.Errorf("callers waiting %v = %d, want 5", d, counts[d])
		}
	}

	state := g.Snapshot()
	if state.InWindow != 5 || state.Queued != 15 {
		t.Errorf("Snapshot() = %+v, want 5 in window and 15 queued", state)
	}
}

func TestGate_CancelledBeforeAcquire(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, DefaultConfig(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
	if state := g.Snapshot(); state.InWindow != 0 {
		t.Errorf("cancelled caller consumed a ticket: %+v", state)
	}
}

func TestGate_CancelWhileQueuedReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 1, IntervalSeconds: 1}, clock)

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := g.Acquire(ctx)
	if err != context.Canceled {
		t.Fatalf("Acquire() error = %v, want context.Canceled unchanged", err)
	}

	state := g.Snapshot()
	if state.Queued != 0 {
		t.Errorf("Queued = %d after cancellation, want 0", state.Queued)
	}
	if want := clock.Now().Add(time.Second); !state.NextSlot.Equal(want) {
		t.Errorf("NextSlot = %v, want %v", state.NextSlot, want)
	}
}

func TestGate_QueueBound(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, Config{MaxRequestsPerInterval: 1, IntervalSeconds: 1, MaxQueuedRetryAttempts: 2}, clock)
	ctx := context.Background()

	// Slots at +0s, +1s, +2s fit; +3s exceeds two intervals.
	for i := 0; i < 3; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i+1, err)
		}
	}

	err := g.Acquire(ctx)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Acquire() error = %v, want ErrQueueFull", err)
	}
	if state := g.Snapshot(); state.InWindow+state.Queued != 3 {
		t.Errorf("rejected caller consumed a ticket: %+v", state)
	}
}

func TestGate_ExecutePropagatesWorkError(t *testing.T) {
	clock := newFakeClock()
	g := newTestGate(t, DefaultConfig(), clock)
	want := errors.New("boom")

	calls := 0
	err := g.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return want
	})
	if err != want {
		t.Errorf("Execute() error = %v, want %v", err, want)
	}
	if calls != 1 {
		t.Errorf("work called %d times, want 1", calls)
	}
}

func TestGate_RealTimeWait(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	g, err := NewGate(Config{MaxRequestsPerInterval: 2, IntervalSeconds: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := g.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("third call admitted after %v, want >= ~1s", elapsed)
	}
}
