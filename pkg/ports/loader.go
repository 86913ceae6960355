package ports

import (
	"context"

	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// RuleSource resolves rule ids to executable pipelines.
// This allows the adapters to be decoupled from where rules come from.
type RuleSource interface {
	// Get returns the pipeline of a rule.
	// Returns domain.ErrRuleNotFound if the id is unknown.
	Get(id string) (*pipeline.Pipeline, error)

	// IDs returns the known rule ids in sorted order.
	IDs() []string
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled after the rules were reloaded.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
