package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidConfig is returned by NewGate for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid admission gate config")

	// ErrQueueFull is returned when a caller's admission slot lies beyond the
	// configured queue depth. No ticket is consumed.
	ErrQueueFull = errors.New("admission queue full")
)

// Prometheus metrics for admission control.
var (
	admissionWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suitetalk_admission_waits_total",
		Help: "Total number of callers that had to wait for an admission ticket",
	})

	admissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "suitetalk_admission_wait_seconds",
		Help:    "Time callers spent queued for an admission ticket",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	admissionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitetalk_admission_rejections_total",
		Help: "Total number of callers rejected or abandoned before admission",
	}, []string{"reason"})
)

// Config holds admission gate settings.
type Config struct {
	// MaxRequestsPerInterval is the number of tickets issued per rolling window.
	MaxRequestsPerInterval int

	// IntervalSeconds is the rolling window length.
	IntervalSeconds int

	// MaxQueuedRetryAttempts bounds the queue depth in whole intervals. A caller
	// whose slot lies more than this many intervals ahead is rejected with
	// ErrQueueFull. Zero disables the bound.
	MaxQueuedRetryAttempts int
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerInterval: DefaultMaxRequestsPerInterval,
		IntervalSeconds:        DefaultIntervalSeconds,
		MaxQueuedRetryAttempts: DefaultMaxQueuedRetryAttempts,
	}
}

// Validate checks minimum values.
func (c Config) Validate() error {
	if c.MaxRequestsPerInterval < 1 {
		return fmt.Errorf("%w: max requests per interval must be >= 1, got %d", ErrInvalidConfig, c.MaxRequestsPerInterval)
	}
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("%w: interval seconds must be >= 1, got %d", ErrInvalidConfig, c.IntervalSeconds)
	}
	if c.MaxQueuedRetryAttempts < 0 {
		return fmt.Errorf("%w: max queued retry attempts must be >= 0, got %d", ErrInvalidConfig, c.MaxQueuedRetryAttempts)
	}
	return nil
}

// Gate admits at most MaxRequestsPerInterval callers per rolling interval.
// Callers beyond that reserve the next free slot in arrival order and wait
// for it. One Gate is shared by every operation of a client.
type Gate struct {
	limit    int
	interval time.Duration
	maxQueue time.Duration
	logger   zerolog.Logger

	mu sync.Mutex
	// tickets holds issue times in ascending order, including future
	// reservations of queued callers.
	tickets []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate validates cfg and creates a gate.
func NewGate(cfg Config, logger zerolog.Logger) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	return &Gate{
		limit:    cfg.MaxRequestsPerInterval,
		interval: interval,
		maxQueue: time.Duration(cfg.MaxQueuedRetryAttempts) * interval,
		logger:   logger,
		tickets:  make([]time.Time, 0, cfg.MaxRequestsPerInterval),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Execute acquires a ticket and runs work. Errors from work are returned
// unchanged.
func (g *Gate) Execute(ctx context.Context, work func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	return work(ctx)
}

// Acquire blocks until the caller holds an admission ticket.
// If ctx is cancelled while queued, the reservation is released and the
// context error is returned as is.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	now := g.now()
	g.prune(now)

	at := g.nextSlot(now)
	wait := at.Sub(now)
	if g.maxQueue > 0 && wait > g.maxQueue {
		queued := len(g.tickets)
		g.mu.Unlock()

		admissionRejectionsTotal.WithLabelValues("queue_full").Inc()
		g.logger.Warn().
			Dur("wait", wait).
			Int("tickets", queued).
			Msg("Admission queue full - rejecting call")
		return fmt.Errorf("%w: next slot in %s", ErrQueueFull, wait)
	}

	g.tickets = append(g.tickets, at)
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	admissionWaitsTotal.Inc()
	admissionWaitSeconds.Observe(wait.Seconds())
	g.logger.Debug().
		Dur("wait", wait).
		Msg("Admission window full - waiting for ticket")

	if err := g.sleep(ctx, wait); err != nil {
		g.release(at)
		admissionRejectionsTotal.WithLabelValues("cancelled").Inc()
		return err
	}
	return nil
}

// Snapshot reports the current window occupancy.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	state := State{
		Limit:    g.limit,
		Interval: g.interval,
		NextSlot: g.nextSlot(now),
	}
	for _, t := range g.tickets {
		if t.After(now) {
			state.Queued++
		} else {
			state.InWindow++
		}
	}
	return state
}

// nextSlot returns the earliest admission time for a new ticket. The new
// ticket never precedes the last reservation, and never falls within one
// interval of the ticket limit places behind it. Caller holds mu.
func (g *Gate) nextSlot(now time.Time) time.Time {
	at := now
	n := len(g.tickets)
	if n > 0 && g.tickets[n-1].After(at) {
		at = g.tickets[n-1]
	}
	if n >= g.limit {
		if expiry := g.tickets[n-g.limit].Add(g.interval); expiry.After(at) {
			at = expiry
		}
	}
	return at
}

// prune drops tickets that have left the window. Caller holds mu.
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.interval)
	i := 0
	for i < len(g.tickets) && !g.tickets[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.tickets = append(g.tickets[:0], g.tickets[i:]...)
	}
}

// release removes an abandoned reservation. Later reservations keep their
// slots, so releasing can only leave the window under-used.
func (g *Gate) release(at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := len(g.tickets) - 1; i >= 0; i-- {
		if g.tickets[i].Equal(at) {
			g.tickets = append(g.tickets[:i], g.tickets[i+1:]...)
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
