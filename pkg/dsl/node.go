package dsl

import (
	"fmt"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	id      domain.StepID
	typ     domain.StepType
	name    string
	handler domain.Handler
	ports   domain.PortOptions
	props   domain.Props

	connections []connection
	scope       *Scope
	inner       *Scope

	built *domain.Step
}

type connection struct {
	target     *StepBuilder
	srcOutPort string
	dstInPort  string
}

// ID returns the id assigned to the step.
func (n *StepBuilder) ID() domain.StepID { return n.id }

// Name sets the step label.
func (n *StepBuilder) Name(name string) *StepBuilder {
	n.name = name
	return n
}

// Do sets the handler of the step.
func (n *StepBuilder) Do(h domain.Handler) *StepBuilder {
	n.handler = h
	return n
}

// In declares in-ports besides "default".
func (n *StepBuilder) In(ports ...string) *StepBuilder {
	n.ports.In = append(n.ports.In, ports...)
	return n
}

// Out declares out-ports besides "default".
func (n *StepBuilder) Out(ports ...string) *StepBuilder {
	n.ports.Out = append(n.ports.Out, ports...)
	return n
}

// Prop sets a single property.
func (n *StepBuilder) Prop(key string, value any) *StepBuilder {
	n.props[key] = value
	return n
}

// Go connects the default out-port to the default in-port of target.
func (n *StepBuilder) Go(target *StepBuilder) *StepBuilder {
	return n.Connect(domain.DefaultPort, target, domain.DefaultPort)
}

// Connect links srcOutPort of this step to dstInPort of target. Both ports
// must be declared by the time Build runs.
func (n *StepBuilder) Connect(srcOutPort string, target *StepBuilder, dstInPort string) *StepBuilder {
	if target == nil {
		n.scope.builder.fail(fmt.Errorf("step %s: connect %s: %w", n.id, srcOutPort, domain.ErrNilStep))
		return n
	}
	n.connections = append(n.connections, connection{
		target:     target,
		srcOutPort: srcOutPort,
		dstInPort:  dstInPort,
	})
	return n
}

// OnError declares the "error" out-port and routes it to target.
func (n *StepBuilder) OnError(target *StepBuilder) *StepBuilder {
	return n.Out(domain.ErrorPort).Connect(domain.ErrorPort, target, domain.DefaultPort)
}

func (n *StepBuilder) options() domain.Options {
	return domain.Options{
		ID:      n.id,
		Name:    n.name,
		Handler: n.handler,
		Ports:   n.ports,
		Props:   n.props,
		IDs:     n.scope.builder.ids,
	}
}

func (n *StepBuilder) construct() (*domain.Step, error) {
	if n.typ == domain.StepTypeComposite {
		c, err := domain.NewComposite(n.options())
		if err != nil {
			return nil, err
		}
		n.built = c.Step
		return n.built, nil
	}
	step, err := domain.NewStep(n.typ, n.options())
	if err != nil {
		return nil, err
	}
	n.built = step
	return step, nil
}

// fill builds the sub-graph of a composite. Ports declared on the composite
// itself are added after the boundary snapshots.
func (n *StepBuilder) fill() error {
	c, ok := domain.AsComposite(n.built)
	if !ok {
		return fmt.Errorf("step %s: %w", n.id, domain.ErrNotComposite)
	}
	children, err := n.inner.build()
	if err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	if n.inner.start == nil || n.inner.end == nil {
		return fmt.Errorf("composite %s: %w: boundaries not set", n.id, domain.ErrStepNotFound)
	}
	if err := c.SetStartStep(n.inner.start.built); err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	if err := c.SetEndStep(n.inner.end.built); err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	if err := c.Add(children...); err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	if err := c.AddInPorts(n.ports.In...); err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	if err := c.AddOutPorts(n.ports.Out...); err != nil {
		return fmt.Errorf("composite %s: %w", n.id, err)
	}
	return nil
}
