package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTestPolicy returns a policy whose delays are recorded instead of slept.
func newTestPolicy(t *testing.T, attempts, base, rate int) (*Policy, *[]time.Duration) {
	t.Helper()

	p, err := NewPolicy(attempts, base, rate, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return p, &delays
}

func TestNewPolicy_Validation(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		base     int
		rate     int
		wantErr  bool
	}{
		{"defaults", 10, 5, 20, false},
		{"no retries", 0, 0, 0, false},
		{"negative attempts", -1, 5, 20, true},
		{"negative base delay", 3, -1, 20, true},
		{"negative rate", 3, 5, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.attempts, tt.base, tt.rate, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestPolicy_Delay(t *testing.T) {
	p, _ := newTestPolicy(t, 10, 5, 20)

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 5 * time.Second},
		{1, 25 * time.Second},
		{2, 45 * time.Second},
		{9, 185 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	p, delays := newTestPolicy(t, 5, 1, 2)
	calls := 0

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &Error{Kind: KindTransientNetwork}
		}
		return nil
	}, Hooks{})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{1 * time.Second, 3 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
	for i := range want {
		if (*delays)[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, (*delays)[i], want[i])
		}
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	p, delays := newTestPolicy(t, 2, 1, 1)
	calls := 0
	last := &Error{Kind: KindTransientNetwork, StatusCode: 503}

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return last
	}, Hooks{})

	if calls != 3 {
		t.Errorf("calls = %d, want attempts+1 = 3", calls)
	}
	if len(*delays) != 2 {
		t.Errorf("delays = %v, want 2 entries", *delays)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	var e *Error
	if !errors.As(err, &e) || e != last {
		t.Errorf("error does not wrap the last failure: %v", err)
	}
}

func TestPolicy_FatalKinds(t *testing.T) {
	for _, kind := range []Kind{KindUnauthorized, KindClientRejected, KindUnexpected} {
		t.Run(string(kind), func(t *testing.T) {
			p, delays := newTestPolicy(t, 5, 1, 1)
			calls := 0
			var fatal error

			err := p.Execute(context.Background(), func(ctx context.Context) error {
				calls++
				return &Error{Kind: kind}
			}, Hooks{OnFatal: func(err error) { fatal = err }})

			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if len(*delays) != 0 {
				t.Errorf("delays = %v, want none", *delays)
			}
			if KindOf(err) != kind {
				t.Errorf("KindOf(err) = %q, want %q", KindOf(err), kind)
			}
			if fatal == nil {
				t.Error("OnFatal was not called")
			}
		})
	}
}

func TestPolicy_CancelledIsNotFatalHook(t *testing.T) {
	p, _ := newTestPolicy(t, 5, 1, 1)
	fatalCalled := false

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		return &Error{Kind: KindCancelled, Err: ErrCancelled}
	}, Hooks{OnFatal: func(error) { fatalCalled = true }})

	if !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
	if fatalCalled {
		t.Error("OnFatal called for cancellation")
	}
}

func TestPolicy_CancelDuringDelay(t *testing.T) {
	p, _ := newTestPolicy(t, 5, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := p.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &Error{Kind: KindTransientNetwork}
	}, Hooks{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if KindOf(err) != KindCancelled {
		t.Errorf("KindOf(err) = %q, want %q", KindOf(err), KindCancelled)
	}
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
}

func TestPolicy_Bypass(t *testing.T) {
	p, delays := newTestPolicy(t, 5, 1, 1)
	calls := 0
	timeout := &Error{Kind: KindTransientNetwork, TimedOut: true}

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return timeout
	}, Hooks{Bypass: IsTimeout})

	if calls != 1 || len(*delays) != 0 {
		t.Errorf("calls = %d, delays = %v, want 1 call without delay", calls, *delays)
	}
	if err != timeout {
		t.Errorf("error = %v, want the timeout unchanged", err)
	}
}

func TestPolicy_OnRetry(t *testing.T) {
	p, _ := newTestPolicy(t, 3, 2, 3)
	var retries []int
	var delays []time.Duration

	_ = p.Execute(context.Background(), func(ctx context.Context) error {
		return &Error{Kind: KindTransientNetwork}
	}, Hooks{
		OnRetry: func(err error, delay time.Duration, retry int) {
			retries = append(retries, retry)
			delays = append(delays, delay)
		},
		Describe: func() string { return "search [mark test]" },
	})

	wantRetries := []int{1, 2, 3}
	wantDelays := []time.Duration{2 * time.Second, 5 * time.Second, 8 * time.Second}
	for i := range wantRetries {
		if i >= len(retries) {
			t.Fatalf("retries = %v, want %v", retries, wantRetries)
		}
		if retries[i] != wantRetries[i] || delays[i] != wantDelays[i] {
			t.Errorf("retry %d: (%d, %v), want (%d, %v)", i, retries[i], delays[i], wantRetries[i], wantDelays[i])
		}
	}
}

func TestDo(t *testing.T) {
	p, _ := newTestPolicy(t, 1, 0, 0)
	calls := 0

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &Error{Kind: KindTransientNetwork}
		}
		return "ok", nil
	}, Hooks{})

	if err != nil || got != "ok" {
		t.Errorf("Do() = (%q, %v), want (\"ok\", nil)", got, err)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() = %v, want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("sleepContext(0) = %v, want nil", err)
	}
}
