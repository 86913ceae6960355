package ports

import (
	"context"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// RunStore defines the interface for persisting run records.
type RunStore interface {
	// Save persists the record under run.ID, replacing any previous version.
	Save(ctx context.Context, run *domain.RunRecord) error

	// Load retrieves the record of a run.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes the record of a run. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the ids of the stored runs, most recently started first.
	List(ctx context.Context) ([]string, error)
}
