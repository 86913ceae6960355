package memory

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// Rules implements ports.RuleSource using an in-memory map keyed by
// pipeline name. Safe for concurrent use.
type Rules struct {
	mu    sync.RWMutex
	rules map[string]*pipeline.Pipeline
}

// NewRules creates a rule source holding the given pipelines.
func NewRules(pipelines ...*pipeline.Pipeline) (*Rules, error) {
	r := &Rules{rules: make(map[string]*pipeline.Pipeline)}
	for _, p := range pipelines {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers p under its name, replacing a rule of the same name.
func (r *Rules) Add(p *pipeline.Pipeline) error {
	if p == nil {
		return fmt.Errorf("add rule: nil pipeline")
	}
	if p.Name() == "" {
		return fmt.Errorf("add rule: pipeline has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[p.Name()] = p
	return nil
}

// Get returns the pipeline registered under id.
func (r *Rules) Get(id string) (*pipeline.Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
	}
	return p, nil
}

// IDs returns all rule ids in sorted order.
func (r *Rules) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.rules))
}
