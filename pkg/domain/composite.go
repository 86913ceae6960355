package domain

import (
	"maps"
)

// Composite is a step that owns a private sub-graph. Its in-ports are a copy
// of the start step's in-ports and its out-ports a copy of the end step's
// out-ports, taken when the boundary step is set.
//
// A Composite is added to a container through its embedded *Step.
type Composite struct {
	*Step
}

type compositeScope struct {
	start *Step
	end   *Step
	steps *StepSet
}

// NewComposite creates a composite step with an empty sub-graph.
func NewComposite(opts Options) (*Composite, error) {
	s, err := newStep(StepTypeComposite, opts)
	if err != nil {
		return nil, err
	}
	s.scope = &compositeScope{steps: NewStepSet()}
	return &Composite{Step: s}, nil
}

// AsComposite returns the composite view of s when s is a composite step.
func AsComposite(s *Step) (*Composite, bool) {
	if s == nil || s.scope == nil {
		return nil, false
	}
	return &Composite{Step: s}, true
}

// SetStartStep sets the entry boundary, snapshots its in-ports onto the
// composite and adds it to the sub-graph.
func (c *Composite) SetStartStep(step *Step) error {
	if step == nil {
		return ErrNilStep
	}
	if err := c.scope.steps.Add(step); err != nil {
		return err
	}
	c.scope.start = step
	c.in = maps.Clone(step.in)
	return nil
}

// SetEndStep sets the exit boundary, snapshots its out-ports onto the
// composite and adds it to the sub-graph.
func (c *Composite) SetEndStep(step *Step) error {
	if step == nil {
		return ErrNilStep
	}
	if err := c.scope.steps.Add(step); err != nil {
		return err
	}
	c.scope.end = step
	c.out = maps.Clone(step.out)
	return nil
}

func (c *Composite) StartStep() *Step { return c.scope.start }
func (c *Composite) EndStep() *Step   { return c.scope.end }

// Add registers steps in the sub-graph.
func (c *Composite) Add(steps ...*Step) error {
	return c.scope.steps.AddAll(steps...)
}

// Remove drops a step from the sub-graph. Boundary references are kept.
func (c *Composite) Remove(id StepID) {
	c.scope.steps.Remove(id)
}

// GetStep returns the sub-graph step with the given id, or nil.
func (c *Composite) GetStep(id StepID) *Step {
	return c.scope.steps.Get(id)
}

// Steps returns the sub-graph steps ordered by id.
func (c *Composite) Steps() []*Step {
	return c.scope.steps.Sorted()
}

// StepMap returns a snapshot of the sub-graph indexed by id.
func (c *Composite) StepMap() map[StepID]*Step {
	return c.scope.steps.Map()
}
