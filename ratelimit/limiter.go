package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLimited is returned by Allow when the key has used up its window
var ErrLimited = errors.New("rate limit exceeded")

// Store counts hits per key in fixed windows
type Store interface {
	// Increment records one hit for key and returns the hit count of the
	// current window and when that window ends. The first hit opens a new
	// window of the given length.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter allows at most limit hits per key within each window
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	prefix string
}

// New creates a limiter over store
func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow records a hit for key. A denied hit returns ErrLimited together with
// the decision; any other error comes from the store.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Increment(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count request: %w", err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		return d, ErrLimited
	}
	return d, nil
}
