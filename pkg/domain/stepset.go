package domain

import (
	"fmt"
	"maps"
	"slices"
)

// StepSet is an id-indexed arena of steps for one scope. Connections between
// steps of the same scope are resolved against it at traversal time.
// It is not safe for concurrent use.
type StepSet struct {
	steps map[StepID]*Step
}

// NewStepSet creates an empty set.
func NewStepSet() *StepSet {
	return &StepSet{steps: make(map[StepID]*Step)}
}

// Add registers step. Adding the same step twice is a no-op; adding a
// different step under an id already in use fails with ErrDuplicateStep.
func (s *StepSet) Add(step *Step) error {
	if step == nil {
		return ErrNilStep
	}
	if existing, ok := s.steps[step.id]; ok && existing != step {
		return fmt.Errorf("%w: %s", ErrDuplicateStep, step.id)
	}
	s.steps[step.id] = step
	return nil
}

// AddAll checks every step before registering any of them.
func (s *StepSet) AddAll(steps ...*Step) error {
	seen := make(map[StepID]*Step, len(steps))
	for _, step := range steps {
		if step == nil {
			return ErrNilStep
		}
		if existing, ok := s.steps[step.id]; ok && existing != step {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, step.id)
		}
		if other, ok := seen[step.id]; ok && other != step {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, step.id)
		}
		seen[step.id] = step
	}
	for _, step := range steps {
		s.steps[step.id] = step
	}
	return nil
}

// Remove drops the step with the given id and returns it, or nil.
func (s *StepSet) Remove(id StepID) *Step {
	step := s.steps[id]
	delete(s.steps, id)
	return step
}

// Get returns the step with the given id, or nil.
func (s *StepSet) Get(id StepID) *Step {
	return s.steps[id]
}

func (s *StepSet) Len() int {
	return len(s.steps)
}

// Map returns a snapshot of the set.
func (s *StepSet) Map() map[StepID]*Step {
	return maps.Clone(s.steps)
}

// Sorted returns the steps ordered by id.
func (s *StepSet) Sorted() []*Step {
	out := slices.Collect(maps.Values(s.steps))
	slices.SortFunc(out, func(a, b *Step) int {
		return a.id.Compare(b.id)
	})
	return out
}
