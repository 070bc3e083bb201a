package events

import (
	"context"
	"sync"
	"time"

	"trafficlens/internal/timeframe"
)

// MemoryStore keeps the log and the visitor table in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	views    []PageView
	visitors map[string]Visitor
	nextID   uint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visitors: make(map[string]Visitor),
		nextID:   1,
	}
}

func (s *MemoryStore) RecordPageView(_ context.Context, input PageViewInput) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := input.WithID(s.nextID)
	s.nextID++
	s.views = append(s.views, view)
	return view, nil
}

func (s *MemoryStore) GetPageViews(_ context.Context, start, end time.Time) ([]PageView, error) {
	s.mu.RLock()
	// Appends never touch existing elements, so the prefix stays valid after unlock.
	snapshot := s.views[:len(s.views):len(s.views)]
	s.mu.RUnlock()

	r := timeframe.Range{Start: start, End: end}
	result := make([]PageView, 0)
	for _, view := range snapshot {
		if r.Contains(view.Timestamp) {
			result = append(result, view)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetVisitor(_ context.Context, id string) (*Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visitor, ok := s.visitors[id]
	if !ok {
		return nil, nil
	}
	return &visitor, nil
}

func (s *MemoryStore) SaveVisitor(_ context.Context, visitor Visitor) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visitor.Visits = 1
	s.visitors[visitor.ID] = visitor
	return visitor, nil
}

func (s *MemoryStore) UpdateVisitor(_ context.Context, id string, lastSeen time.Time) (*Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visitor, ok := s.visitors[id]
	if !ok {
		return nil, nil
	}
	visitor.LastSeen = lastSeen
	visitor.Visits++
	s.visitors[id] = visitor
	return &visitor, nil
}

// Len returns the number of recorded page views.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}
