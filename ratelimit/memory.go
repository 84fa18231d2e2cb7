package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Expired windows are removed
// by Sweep, either called directly or from StartSweeper.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (m *MemoryStore) Increment(_ context.Context, key string, length time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(length)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Sweep drops expired windows and returns how many were removed
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// StartSweeper runs Sweep every interval until Stop is called
func (m *MemoryStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logging.Log.Debug("Swept rate limit windows", zap.Int("removed", n))
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sweeper goroutine
func (m *MemoryStore) Stop() {
	m.once.Do(func() { close(m.stop) })
}
