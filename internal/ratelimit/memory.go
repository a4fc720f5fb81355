// Package ratelimit bounds attempts per client identity with a fixed-window counter.
//
// Memory keeps counters in process memory, so every instance of the service counts
// on its own: with N instances a client effectively gets N times the limit.
// Redis shares the counter between instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/authgate/internal/model"
)

// Defaults applied when a non-positive limit or window is given.
const (
	DefaultLimit  = 5
	DefaultWindow = time.Minute
)

var _ model.RateLimiter = (*Memory)(nil)

type entry struct {
	count       int
	windowStart time.Time
}

// Memory is an in-process fixed-window limiter.
// A window that has lasted window or longer is reset on the next attempt, so a client can
// burst up to 2*limit attempts across a window boundary.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory limiter allowing limit attempts per window.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Memory{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records an attempt for clientID and reports whether it is within the limit.
func (m *Memory) Allow(_ context.Context, clientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[clientID]
	if !ok || now.Sub(e.windowStart) >= m.window {
		m.entries[clientID] = &entry{count: 1, windowStart: now}
		return true, nil
	}

	e.count++
	return e.count <= m.limit, nil
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for clientID, e := range m.entries {
		if now.Sub(e.windowStart) >= m.window {
			delete(m.entries, clientID)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of tracked clients.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
