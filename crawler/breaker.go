package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker states
const (
	StateClosed   = "closed"
	StateHalfOpen = "half-open"
	StateOpen     = "open"
)

var stateGauge = map[string]float64{
	StateClosed:   0,
	StateHalfOpen: 1,
	StateOpen:     2,
}

// Breaker wraps a Provider and stops calling it after repeated failures.
// After resetTimeout one trial call is let through; its outcome closes or
// reopens the circuit.
type Breaker struct {
	mutex            sync.Mutex
	next             Provider
	name             string
	failureCount     int
	failureThreshold int
	lastFailure      time.Time
	resetTimeout     time.Duration
	state            string
	now              func() time.Time
}

// NewBreaker wraps next under the given service name
func NewBreaker(name string, next Provider, failureThreshold int, resetTimeout time.Duration) *Breaker {
	b := &Breaker{
		next:             next,
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateGauge[StateClosed])
	return b
}

// Crawl forwards to the wrapped provider unless the circuit is open
func (b *Breaker) Crawl(ctx context.Context, url string, limit int) ([]Page, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	pages, err := b.next.Crawl(ctx, url, limit)
	b.after(err)
	return pages, err
}

func (b *Breaker) before() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) <= b.resetTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		logging.Log.Info("Circuit half-open, allowing test request", zap.String("service", b.name))
	case StateHalfOpen:
		// a trial call is already in flight
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if errors.Is(err, context.Canceled) {
		// the caller left; the outcome says nothing about the provider
		if b.state == StateHalfOpen {
			b.setState(StateOpen)
			logging.Log.Debug("Circuit trial cancelled, staying open", zap.String("service", b.name))
		}
		return
	}

	if err != nil && countsAsFailure(err) {
		b.failureCount++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
			b.setState(StateOpen)
			logging.Log.Warn("Circuit opened due to failures",
				zap.String("service", b.name),
				zap.Int("failures", b.failureCount),
				zap.Time("until", b.lastFailure.Add(b.resetTimeout)))
		}
		return
	}

	if b.state == StateHalfOpen {
		logging.Log.Info("Circuit closed after successful test", zap.String("service", b.name))
	}
	b.failureCount = 0
	b.setState(StateClosed)
}

func (b *Breaker) setState(state string) {
	b.state = state
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(stateGauge[state])
}

// countsAsFailure excludes crawls the provider answered without pages
func countsAsFailure(err error) bool {
	return !errors.Is(err, ErrNoPages)
}

// State returns the current circuit state
func (b *Breaker) State() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}
