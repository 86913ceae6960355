package graph

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

type vertex struct {
	key  string
	step *domain.Step
}

// GenerateDOT produces a Graphviz description of p. Composite steps are
// drawn as box3d nodes with dashed "enter" and "exit" edges to their
// boundary steps, since DOT output has no nested scopes.
func GenerateDOT(p *pipeline.Pipeline) (string, error) {
	g := graph.New(func(v vertex) string { return v.key }, graph.Directed())
	if err := addScope(g, "", p.Steps()); err != nil {
		return "", fmt.Errorf("graph %s: %w", p.Name(), err)
	}

	var buf bytes.Buffer
	if err := draw.DOT(g, &buf, draw.GraphAttribute("label", p.Name())); err != nil {
		return "", fmt.Errorf("graph %s: %w", p.Name(), err)
	}
	return buf.String(), nil
}

func addScope(g graph.Graph[string, vertex], prefix string, steps []*domain.Step) error {
	key := func(id domain.StepID) string {
		if prefix == "" {
			return string(id)
		}
		return prefix + "/" + string(id)
	}

	for _, step := range steps {
		v := vertex{key: key(step.ID()), step: step}
		if err := g.AddVertex(v,
			graph.VertexAttribute("label", escapeLabel(Label(step))),
			graph.VertexAttribute("shape", dotShape(step.Type())),
		); err != nil {
			return err
		}
	}

	for _, step := range steps {
		c, ok := domain.AsComposite(step)
		if !ok {
			continue
		}
		inner := key(step.ID())
		if err := addScope(g, inner, c.Steps()); err != nil {
			return err
		}
		if start := c.StartStep(); start != nil {
			if err := addEdge(g, inner, inner+"/"+string(start.ID()), "enter", "dashed"); err != nil {
				return err
			}
		}
		if end := c.EndStep(); end != nil {
			if err := addEdge(g, inner+"/"+string(end.ID()), inner, "exit", "dashed"); err != nil {
				return err
			}
		}
	}

	for _, step := range steps {
		for _, conn := range step.Connections() {
			style := "solid"
			if conn.SrcOutPort == domain.ErrorPort {
				style = "dotted"
			}
			err := addEdge(g, key(step.ID()), key(conn.StepID), EdgeLabel(conn), style)
			if errors.Is(err, graph.ErrVertexNotFound) {
				// Dangling targets are the validator's business.
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func addEdge(g graph.Graph[string, vertex], from, to, label, style string) error {
	err := g.AddEdge(from, to,
		graph.EdgeAttribute("label", escapeLabel(label)),
		graph.EdgeAttribute("style", style),
	)
	if errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return nil
	}
	return err
}

func dotShape(t domain.StepType) string {
	switch t {
	case domain.StepTypeStart:
		return "circle"
	case domain.StepTypeEnd:
		return "doublecircle"
	case domain.StepTypeError:
		return "hexagon"
	case domain.StepTypeComposite:
		return "box3d"
	}
	return "box"
}
