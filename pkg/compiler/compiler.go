// Package compiler turns rule descriptions into pipelines.
//
// Compile builds a live *pipeline.Pipeline; Generate writes Go source that
// builds the same pipeline. Both follow one construction sequence per scope:
// every step is constructed, composites receive their boundaries and
// children (innermost first), steps are connected by live reference so that
// destination in-ports are checked immediately, and finally the top-level
// steps are added to the pipeline.
package compiler

import (
	"fmt"

	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
)

// Compile builds a pipeline from def. Handler names resolve against reg and
// props are checked against the schema their handler declares. The
// pipeline is named after the description; opts may override that.
func Compile(def *definition.Definition, reg *registry.Registry, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if def == nil {
		return nil, fmt.Errorf("compile: nil description")
	}
	if reg == nil {
		reg = registry.NewWithBuiltins()
	}

	p := pipeline.New(append([]pipeline.Option{pipeline.WithName(def.Name)}, opts...)...)
	c := &compilation{reg: reg, ids: p.IDs()}

	steps, err := c.scope(def.Steps)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", def.Name, err)
	}
	if err := p.Add(steps...); err != nil {
		return nil, fmt.Errorf("compile %s: %w", def.Name, err)
	}
	return p, nil
}

type compilation struct {
	reg *registry.Registry
	ids *domain.IDGenerator
}

// scope builds the steps of one scope and returns them in description order.
func (c *compilation) scope(defs []definition.StepDef) ([]*domain.Step, error) {
	built := make(map[domain.StepID]*domain.Step, len(defs))
	ordered := make([]*domain.Step, 0, len(defs))

	for i := range defs {
		def := &defs[i]
		if _, dup := built[def.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateStep, def.ID)
		}
		step, err := c.construct(def)
		if err != nil {
			return nil, err
		}
		built[def.ID] = step
		ordered = append(ordered, step)
	}

	for i := range defs {
		def := &defs[i]
		if !def.IsComposite() {
			continue
		}
		if err := c.composite(def, built[def.ID]); err != nil {
			return nil, err
		}
	}

	for i := range defs {
		def := &defs[i]
		from := built[def.ID]
		for _, conn := range def.Connect {
			to, ok := built[conn.StepID]
			if !ok {
				return nil, fmt.Errorf("step %s: %w: %s", def.ID, domain.ErrStepNotFound, conn.StepID)
			}
			if err := from.ConnectTo(to, conn.SrcOutPort, conn.DstInPort); err != nil {
				return nil, fmt.Errorf("step %s: connect to %s: %w", def.ID, conn.StepID, err)
			}
		}
	}

	return ordered, nil
}

func (c *compilation) construct(def *definition.StepDef) (*domain.Step, error) {
	opts := domain.Options{
		ID:    def.ID,
		Name:  def.Name,
		Ports: def.Ports.PortOptions(),
		Props: domain.Props(def.Props),
		IDs:   c.ids,
	}

	if def.Handler != "" {
		entry, err := c.reg.Entry(def.Handler)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", def.ID, err)
		}
		if err := c.reg.ValidateProps(def.Handler, def.Props); err != nil {
			return nil, fmt.Errorf("step %s: invalid props for %s: %w", def.ID, def.Handler, err)
		}
		opts.Handler = entry.Handler
	}

	if def.IsComposite() {
		composite, err := domain.NewComposite(opts)
		if err != nil {
			return nil, err
		}
		return composite.Step, nil
	}
	return domain.NewStep(def.Type, opts)
}

// composite builds the sub-graph of def into step.
func (c *compilation) composite(def *definition.StepDef, step *domain.Step) error {
	composite, ok := domain.AsComposite(step)
	if !ok {
		return fmt.Errorf("step %s: %w", def.ID, domain.ErrNotComposite)
	}

	children, err := c.scope(def.Steps)
	if err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}

	byID := make(map[domain.StepID]*domain.Step, len(children))
	for _, child := range children {
		byID[child.ID()] = child
	}
	start, ok := byID[def.StartID]
	if !ok {
		return fmt.Errorf("composite %s: start step: %w: %q", def.ID, domain.ErrStepNotFound, def.StartID)
	}
	end, ok := byID[def.EndID]
	if !ok {
		return fmt.Errorf("composite %s: end step: %w: %q", def.ID, domain.ErrStepNotFound, def.EndID)
	}

	if err := composite.SetStartStep(start); err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}
	if err := composite.SetEndStep(end); err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}
	if err := composite.Add(children...); err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}

	// Ports declared on the composite itself extend the boundary snapshots.
	if err := composite.AddInPorts(def.Ports.In...); err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}
	if err := composite.AddOutPorts(def.Ports.Out...); err != nil {
		return fmt.Errorf("composite %s: %w", def.ID, err)
	}
	return nil
}
