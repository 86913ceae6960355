// Package definition holds the declarative description of a step graph.
//
// A description is a tree of steps. Top-level steps become the members of a
// pipeline; the steps of a composite become its private sub-graph. Ids are
// strings, integer ids are accepted and normalised to their decimal form.
//
//	name: greet
//	steps:
//	  - id: 1
//	    type: start
//	    connect: [{stepId: 2}]
//	  - id: 2
//	    type: single
//	    handler: set
//	    props: {greeting: "=\"hello \" + ctx.name"}
//	    connect: [{stepId: 3}]
//	  - id: 3
//	    type: end
package definition

import (
	"github.com/aretw0/ruleflow/pkg/domain"
)

// Definition is a complete rule: a named list of top-level steps.
type Definition struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name" jsonschema:"description=Rule identifier. Defaults to the file name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Steps       []StepDef `json:"steps" yaml:"steps" mapstructure:"steps" jsonschema:"minItems=1"`
}

// StepDef describes one step and its outgoing connections.
type StepDef struct {
	ID      domain.StepID   `json:"id" yaml:"id" mapstructure:"id"`
	Type    domain.StepType `json:"type" yaml:"type" mapstructure:"type" jsonschema:"enum=start,enum=end,enum=error,enum=single,enum=composite"`
	Name    string          `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Handler string          `json:"handler,omitempty" yaml:"handler,omitempty" mapstructure:"handler" jsonschema:"description=Name of a registered handler"`
	Ports   PortsDef        `json:"ports,omitempty" yaml:"ports,omitempty" mapstructure:"ports"`
	Props   map[string]any  `json:"props,omitempty" yaml:"props,omitempty" mapstructure:"props"`
	Connect []ConnectionDef `json:"connect,omitempty" yaml:"connect,omitempty" mapstructure:"connect"`

	// Composite only.
	Steps   []StepDef     `json:"steps,omitempty" yaml:"steps,omitempty" mapstructure:"steps"`
	StartID domain.StepID `json:"startId,omitempty" yaml:"startId,omitempty" mapstructure:"startId"`
	EndID   domain.StepID `json:"endId,omitempty" yaml:"endId,omitempty" mapstructure:"endId"`
}

// PortsDef lists the ports declared besides "default".
type PortsDef struct {
	In  []string `json:"in,omitempty" yaml:"in,omitempty" mapstructure:"in"`
	Out []string `json:"out,omitempty" yaml:"out,omitempty" mapstructure:"out"`
}

// ConnectionDef wires srcOutPort of the enclosing step to dstInPort of the
// step with StepID in the same scope. Empty ports mean "default".
type ConnectionDef struct {
	StepID     domain.StepID `json:"stepId" yaml:"stepId" mapstructure:"stepId"`
	SrcOutPort string        `json:"srcOutPort,omitempty" yaml:"srcOutPort,omitempty" mapstructure:"srcOutPort"`
	DstInPort  string        `json:"dstInPort,omitempty" yaml:"dstInPort,omitempty" mapstructure:"dstInPort"`
}

// PortOptions converts the declaration to the domain form.
func (p PortsDef) PortOptions() domain.PortOptions {
	return domain.PortOptions{In: p.In, Out: p.Out}
}

// IsComposite reports whether the step owns a sub-graph.
func (s StepDef) IsComposite() bool {
	return s.Type == domain.StepTypeComposite
}

// Walk visits every step of the definition depth-first, composite children
// after their parent. The path holds the ids of the enclosing composites.
func (d *Definition) Walk(fn func(path []domain.StepID, step *StepDef) error) error {
	return walk(nil, d.Steps, fn)
}

func walk(path []domain.StepID, steps []StepDef, fn func([]domain.StepID, *StepDef) error) error {
	for i := range steps {
		step := &steps[i]
		if err := fn(path, step); err != nil {
			return err
		}
		if len(step.Steps) > 0 {
			if err := walk(append(path[:len(path):len(path)], step.ID), step.Steps, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
