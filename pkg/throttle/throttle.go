package throttle

import (
	"context"
	"fmt"
	"time"
)

// Config defines the fixed window.
type Config struct {
	// Limit is the number of attempts allowed per window.
	Limit int `env:"CHECKOUT_THROTTLE_LIMIT" envDefault:"5"`

	// Window is the length of the counting window.
	Window time.Duration `env:"CHECKOUT_THROTTLE_WINDOW" envDefault:"1h"`
}

// Result reports the state of a key after an attempt was counted.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the attempt that produced this result may proceed.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the window resets. Zero when
// the attempt was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store is the counter backend. Incr counts one attempt against key,
// starting a new window when none is active, and returns the total count
// in the current window together with the window's end.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Limiter is a fixed-window attempt limiter.
type Limiter struct {
	store  Store
	config Config
}

// New creates a Limiter over the given store.
func New(store Store, config Config) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if config.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidConfig, config.Limit)
	}
	if config.Window <= 0 {
		return nil, fmt.Errorf("%w: window %v", ErrInvalidConfig, config.Window)
	}
	return &Limiter{store: store, config: config}, nil
}

// Allow counts one attempt against key and reports whether it may proceed.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		return nil, err
	}
	return &Result{
		Limit:     l.config.Limit,
		Remaining: l.config.Limit - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
