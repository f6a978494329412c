package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often MemoryStore drops expired windows
const DefaultSweepInterval = 5 * time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local Store guarded by a mutex.
// Counters are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store and starts its background sweep.
// A non-positive interval disables the sweep.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*window),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.doneCh)
	}

	return s
}

// Increment implements Store
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}

// Sweep deletes windows whose reset time has passed and returns how many it removed
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Shutdown stops the sweep and waits for it to exit. Safe to call more than once.
func (s *MemoryStore) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now())
		case <-s.stopCh:
			return
		}
	}
}
