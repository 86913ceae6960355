package ports_test

import (
	"cmp"
	"context"
	"slices"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/ports"
)

// MockStore is an unsynchronized in-memory implementation of RunStore for testing purposes.
type MockStore struct {
	data map[string]domain.RunRecord
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.RunRecord),
	}
}

func (m *MockStore) Save(ctx context.Context, run *domain.RunRecord) error {
	// Copy to simulate serialization
	copied := *run
	copied.Trace = slices.Clone(run.Trace)
	m.data[run.ID] = copied
	return nil
}

func (m *MockStore) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	run, ok := m.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return &run, nil
}

func (m *MockStore) Delete(ctx context.Context, runID string) error {
	delete(m.data, runID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	runs := make([]domain.RunRecord, 0, len(m.data))
	for _, run := range m.data {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b domain.RunRecord) int {
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), cmp.Compare(a.ID, b.ID))
	})
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	return ids, nil
}

func TestRunStore_Contract(t *testing.T) {
	// The mock passing the suite keeps the contract itself honest.
	ports.RunStoreContract(t, NewMockStore())
}
