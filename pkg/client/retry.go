package client

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Hooks observe and steer one Execute call. Every field is optional.
type Hooks struct {
	// OnRetry is called before waiting for a retry. retry is 1 for the first
	// retry.
	OnRetry func(err error, delay time.Duration, retry int)

	// Describe returns context for log lines, such as the operation and mark.
	Describe func() string

	// OnFatal is called once for a non-retryable failure other than
	// cancellation.
	OnFatal func(err error)

	// Bypass returns true for errors that must be returned to the caller at
	// once without retrying, even if they are transient.
	Bypass func(err error) bool
}

// Policy retries transient failures with a linearly growing delay.
// It holds no per-call state and is safe for concurrent use.
type Policy struct {
	attempts int
	base     time.Duration
	rate     time.Duration
	logger   zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a retry policy. attempts is the number of retries after
// the first try; the delay before retry k (counting from 0) is
// baseDelaySec + delayRate*k seconds.
func NewPolicy(attempts, baseDelaySec, delayRate int, logger zerolog.Logger) (*Policy, error) {
	if attempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts must be >= 0, got %d", ErrInvalidConfig, attempts)
	}
	if baseDelaySec < 0 {
		return nil, fmt.Errorf("%w: delay between failed requests must be >= 0, got %d", ErrInvalidConfig, baseDelaySec)
	}
	if delayRate < 0 {
		return nil, fmt.Errorf("%w: delay fail request rate must be >= 0, got %d", ErrInvalidConfig, delayRate)
	}

	return &Policy{
		attempts: attempts,
		base:     time.Duration(baseDelaySec) * time.Second,
		rate:     time.Duration(delayRate) * time.Second,
		logger:   logger,
		sleep:    sleepContext,
	}, nil
}

// Attempts returns the configured number of retries.
func (p *Policy) Attempts() int {
	return p.attempts
}

// Delay returns the wait before retry k, counting from 0.
func (p *Policy) Delay(k int) time.Duration {
	return p.base + time.Duration(k)*p.rate
}

// Execute runs work until it succeeds, fails with a non-retryable error, or
// the retries are used up. Only KindTransientNetwork errors are retried.
// Exhaustion returns an error wrapping both ErrRetryExhausted and the last
// failure.
func (p *Policy) Execute(ctx context.Context, work func(ctx context.Context) error, hooks Hooks) error {
	describe := hooks.Describe
	if describe == nil {
		describe = func() string { return "" }
	}

	for k := 0; ; k++ {
		err := work(ctx)
		if err == nil {
			if k > 0 {
				p.logger.Info().
					Str("context", describe()).
					Int("attempt", k+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if hooks.Bypass != nil && hooks.Bypass(err) {
			return err
		}

		kind := KindOf(err)
		if kind != KindTransientNetwork {
			errorsTotal.WithLabelValues(string(kind)).Inc()
			if kind == KindCancelled {
				return err
			}

			event := p.logger.Warn()
			if kind == KindUnexpected {
				event = p.logger.Error()
			}
			event.Err(err).
				Str("context", describe()).
				Str("error_kind", string(kind)).
				Int("attempt", k+1).
				Msg("Request failed - not retrying")

			if hooks.OnFatal != nil {
				hooks.OnFatal(err)
			}
			return err
		}

		if k >= p.attempts {
			errorsTotal.WithLabelValues(string(kind)).Inc()
			retryExhaustedTotal.Inc()
			p.logger.Warn().
				Err(err).
				Str("context", describe()).
				Int("attempts", k+1).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, k+1, err)
		}

		delay := p.Delay(k)
		retriesTotal.WithLabelValues(string(kind)).Inc()
		retryDelaySeconds.Observe(delay.Seconds())
		p.logger.Debug().
			Err(err).
			Str("context", describe()).
			Int("attempt", k+1).
			Dur("delay", delay).
			Msg("Retrying request after delay")

		if hooks.OnRetry != nil {
			hooks.OnRetry(err, delay, k+1)
		}

		if err := p.sleep(ctx, delay); err != nil {
			p.logger.Warn().
				Str("context", describe()).
				Int("attempt", k+1).
				Msg("Context cancelled during retry delay")
			return &Error{Kind: KindCancelled, Err: fmt.Errorf("%w: %w", ErrCancelled, err)}
		}
	}
}

// Do runs work under p and returns its result.
func Do[T any](ctx context.Context, p *Policy, work func(ctx context.Context) (T, error), hooks Hooks) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, hooks)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
