package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// Builder manages the graph construction. It owns the id generator of the
// graph, so every Builder numbers its steps independently.
type Builder struct {
	*Scope

	ids  *domain.IDGenerator
	opts []pipeline.Option
	errs []error
}

// New creates a new graph builder. opts are applied to the pipeline Build
// returns; the builder always contributes the name and its id generator.
func New(name string, opts ...pipeline.Option) *Builder {
	b := &Builder{ids: domain.NewIDGenerator()}
	b.opts = append([]pipeline.Option{pipeline.WithName(name)}, opts...)
	b.opts = append(b.opts, pipeline.WithIDGenerator(b.ids))
	b.Scope = newScope(b)
	return b
}

// Scope collects the steps of one graph level: the pipeline itself or the
// sub-graph of a composite.
type Scope struct {
	builder *Builder
	order   []*StepBuilder
	byID    map[domain.StepID]*StepBuilder

	// Boundaries, only meaningful inside a composite.
	start *StepBuilder
	end   *StepBuilder
}

func newScope(b *Builder) *Scope {
	return &Scope{builder: b, byID: make(map[domain.StepID]*StepBuilder)}
}

// Start adds a start step with a fresh id.
func (s *Scope) Start() *StepBuilder { return s.add(domain.StepTypeStart, "") }

// End adds an end step with a fresh id.
func (s *Scope) End() *StepBuilder { return s.add(domain.StepTypeEnd, "") }

// Error adds an error step with a fresh id.
func (s *Scope) Error() *StepBuilder { return s.add(domain.StepTypeError, "") }

// Single adds a behavior step running h.
func (s *Scope) Single(h domain.Handler) *StepBuilder {
	return s.add(domain.StepTypeSingle, "").Do(h)
}

// Step returns the step with the given id in this scope. If the step doesn't
// exist yet, it is created as a single step.
func (s *Scope) Step(id domain.StepID) *StepBuilder {
	if sb, ok := s.byID[id]; ok {
		return sb
	}
	return s.add(domain.StepTypeSingle, id)
}

// Composite adds a composite step. fill receives the sub-graph scope and
// must set its boundaries with SetStart and SetEnd.
func (s *Scope) Composite(fill func(inner *Scope)) *StepBuilder {
	sb := s.add(domain.StepTypeComposite, "")
	sb.inner = newScope(s.builder)
	if fill != nil {
		fill(sb.inner)
	}
	return sb
}

// SetStart makes sb the entry boundary of a composite sub-graph.
func (s *Scope) SetStart(sb *StepBuilder) *Scope {
	s.start = s.own(sb, "start")
	return s
}

// SetEnd makes sb the exit boundary of a composite sub-graph.
func (s *Scope) SetEnd(sb *StepBuilder) *Scope {
	s.end = s.own(sb, "end")
	return s
}

func (s *Scope) own(sb *StepBuilder, role string) *StepBuilder {
	if sb == nil || sb.scope != s {
		s.builder.fail(fmt.Errorf("%s boundary: %w", role, domain.ErrStepNotFound))
		return nil
	}
	return sb
}

func (s *Scope) add(typ domain.StepType, id domain.StepID) *StepBuilder {
	if id == "" {
		id = s.builder.ids.Next()
	} else {
		s.builder.ids.Reserve(id)
	}
	sb := &StepBuilder{id: id, typ: typ, scope: s, props: domain.Props{}}
	s.order = append(s.order, sb)
	s.byID[id] = sb
	return sb
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Build constructs the pipeline. Every problem recorded while describing
// the graph or found while wiring it is returned joined.
func (b *Builder) Build() (*pipeline.Pipeline, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("build: %w", errors.Join(b.errs...))
	}

	p := pipeline.New(b.opts...)
	steps, err := b.Scope.build()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", p.Name(), err)
	}
	if err := p.Add(steps...); err != nil {
		return nil, fmt.Errorf("build %s: %w", p.Name(), err)
	}
	return p, nil
}

// build constructs every step of the scope, fills composites innermost
// first and then connects steps by reference.
func (s *Scope) build() ([]*domain.Step, error) {
	steps := make([]*domain.Step, 0, len(s.order))
	for _, sb := range s.order {
		step, err := sb.construct()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	for _, sb := range s.order {
		if sb.inner == nil {
			continue
		}
		if err := sb.fill(); err != nil {
			return nil, err
		}
	}

	for _, sb := range s.order {
		for _, c := range sb.connections {
			if c.target.scope != s {
				return nil, fmt.Errorf("step %s: %w: %s is outside its scope", sb.id, domain.ErrStepNotFound, c.target.id)
			}
			if err := sb.built.ConnectTo(c.target.built, c.srcOutPort, c.dstInPort); err != nil {
				return nil, fmt.Errorf("step %s: connect to %s: %w", sb.id, c.target.id, err)
			}
		}
	}
	return steps, nil
}
