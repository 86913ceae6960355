package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.RunRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.RunRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, run *domain.RunRecord) error {
	// Copy to ensure isolation, similar to serialization
	copied := clone(run)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[run.ID] = copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	// Copy on read so callers can't mutate the stored record through the pointer
	return clone(run), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns the stored run ids, newest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	runs := slices.Collect(maps.Values(s.data))
	s.mu.RUnlock()

	slices.SortFunc(runs, func(a, b *domain.RunRecord) int {
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), cmp.Compare(a.ID, b.ID))
	})

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	return ids, nil
}

// clone copies the record with its context (one level deep) and trace.
func clone(run *domain.RunRecord) *domain.RunRecord {
	copied := *run
	copied.Context = maps.Clone(run.Context)
	copied.Trace = slices.Clone(run.Trace)
	return &copied
}
