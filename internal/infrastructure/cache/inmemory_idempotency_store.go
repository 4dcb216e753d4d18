package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// entry represents a stored event ID with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryProcessedEventStore implements shared.ProcessedEventStore with an
// in-memory map. Marks are not shared between processes.
type InMemoryProcessedEventStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryProcessedEventStore creates the store and starts a goroutine
// that drops expired marks every cleanupInterval (5 minutes when zero).
func NewInMemoryProcessedEventStore(cleanupInterval time.Duration) *InMemoryProcessedEventStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	store := &InMemoryProcessedEventStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(cleanupInterval)

	return store
}

// MarkProcessed marks an event as processed with a TTL
// Returns true if the event was newly marked, false if it was already processed
func (s *InMemoryProcessedEventStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[eventID]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[eventID] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// Forget removes the mark of an event
func (s *InMemoryProcessedEventStore) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, eventID)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryProcessedEventStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryProcessedEventStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryProcessedEventStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for eventID, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, eventID)
		}
	}
}

// Size returns the number of entries in the store
func (s *InMemoryProcessedEventStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.ProcessedEventStore = (*InMemoryProcessedEventStore)(nil)
