package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// GraphOverlay contains run state to visualize on the graph. Ids refer to
// top-level steps.
type GraphOverlay struct {
	VisitedSteps []domain.StepID
	FailedStep   domain.StepID
}

// OverlayFromRun collects the steps a recorded run went through.
func OverlayFromRun(run *domain.RunRecord) *GraphOverlay {
	overlay := &GraphOverlay{}
	for _, e := range run.Trace {
		switch e.Type {
		case domain.EventStepBegin:
			overlay.VisitedSteps = append(overlay.VisitedSteps, e.StepID)
		case domain.EventStepError:
			overlay.FailedStep = e.StepID
		}
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of p.
// It applies semantic styling:
// - Start: ((Circle))
// - End: ([Stadium])
// - Error: {{Hexagon}}
// - Composite: subgraph holding its steps
// - Default: [Rectangle]
// Edges leaving the error port are dotted. Edges between non-default ports
// are labeled "out -> in". Overlay styles are applied if provided.
func GenerateMermaid(p *pipeline.Pipeline, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	writeMermaidScope(&sb, "", p.Steps(), 1)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			nodeID := mermaidID("", id)
			if !seen[nodeID] && p.GetStep(id) != nil {
				seen[nodeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", nodeID)
			}
		}
		if overlay.FailedStep != "" && p.GetStep(overlay.FailedStep) != nil {
			fmt.Fprintf(&sb, "    class %s failed;\n", mermaidID("", overlay.FailedStep))
		}
	}

	return sb.String()
}

func writeMermaidScope(sb *strings.Builder, prefix string, steps []*domain.Step, depth int) {
	indent := strings.Repeat("    ", depth)

	for _, step := range steps {
		nodeID := mermaidID(prefix, step.ID())
		label := escapeLabel(Label(step))

		if c, ok := domain.AsComposite(step); ok {
			fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", indent, nodeID, label)
			writeMermaidScope(sb, nodeID, c.Steps(), depth+1)
			fmt.Fprintf(sb, "%send\n", indent)
			continue
		}

		opener, closer := "[", "]"
		switch step.Type() {
		case domain.StepTypeStart:
			opener, closer = "((", "))"
		case domain.StepTypeEnd:
			opener, closer = "([", "])"
		case domain.StepTypeError:
			opener, closer = "{{", "}}"
		}
		fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, nodeID, opener, label, closer)
	}

	for _, step := range steps {
		from := mermaidID(prefix, step.ID())
		for _, conn := range step.Connections() {
			to := mermaidID(prefix, conn.StepID)
			fmt.Fprintf(sb, "%s%s %s %s\n", indent, from, mermaidArrow(conn), to)
		}
	}
}

func mermaidArrow(conn domain.Connection) string {
	label := EdgeLabel(conn)
	switch {
	case conn.SrcOutPort == domain.ErrorPort:
		return fmt.Sprintf("-. \"%s\" .->", escapeLabel(label))
	case label != "":
		return fmt.Sprintf("-- \"%s\" -->", escapeLabel(label))
	}
	return "-->"
}

// Label is the display text of a step: its id, followed by its name when set.
func Label(step *domain.Step) string {
	if step.Name() != "" {
		return fmt.Sprintf("%s: %s", step.ID(), step.Name())
	}
	return fmt.Sprintf("%s: %s", step.ID(), step.Type())
}

// EdgeLabel is "out -> in" for a connection between non-default ports, the
// bare out-port when only the destination is the default, and empty
// otherwise.
func EdgeLabel(conn domain.Connection) string {
	switch {
	case conn.DstInPort != domain.DefaultPort:
		return conn.SrcOutPort + " -> " + conn.DstInPort
	case conn.SrcOutPort != domain.DefaultPort:
		return conn.SrcOutPort
	}
	return ""
}

func mermaidID(prefix string, id domain.StepID) string {
	if prefix == "" {
		return "s_" + sanitizeID(string(id))
	}
	return prefix + "_" + sanitizeID(string(id))
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
