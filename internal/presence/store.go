// Package presence keeps the "who is online" registry: a sliding window of
// recent session activity with a periodic sweep.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
)

// Store persists the latest activity per session
type Store interface {
	// Upsert replaces the session's entry
	Upsert(ctx context.Context, entry domain.OnlineEntry) error
	// Since returns entries seen at or after cutoff, newest first
	Since(ctx context.Context, cutoff time.Time) ([]domain.OnlineEntry, error)
	// Sweep removes entries seen before cutoff and returns how many were removed
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.OnlineEntry
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.OnlineEntry)}
}

// Upsert replaces the session's entry
func (s *MemoryStore) Upsert(_ context.Context, entry domain.OnlineEntry) error {
	s.mu.Lock()
	s.entries[entry.SessionID] = entry
	s.mu.Unlock()
	return nil
}

// Since returns entries seen at or after cutoff, newest first
func (s *MemoryStore) Since(_ context.Context, cutoff time.Time) ([]domain.OnlineEntry, error) {
	s.mu.RLock()
	result := make([]domain.OnlineEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.LastSeen.Before(cutoff) {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(result)
	return result, nil
}

// Sweep removes entries seen before cutoff
func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.LastSeen.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func sortNewestFirst(entries []domain.OnlineEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].SessionID < entries[j].SessionID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
}
