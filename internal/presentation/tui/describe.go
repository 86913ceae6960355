package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/ruleflow/internal/presentation/graph"
	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
)

// Describe renders a markdown summary of rule: its steps with handlers and
// ports, every connection and the Mermaid graph.
func Describe(rule *compiler.Rule) string {
	var sb strings.Builder
	def := rule.Definition

	fmt.Fprintf(&sb, "# %s\n\n", rule.ID())
	if d := strings.TrimSpace(def.Description); d != "" {
		sb.WriteString(d + "\n\n")
	}

	sb.WriteString("## Steps\n\n")
	sb.WriteString("| Step | Type | Name | Handler | In | Out |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	var conns []string
	_ = def.Walk(func(path []domain.StepID, step *definition.StepDef) error {
		id := qualified(path, step.ID)
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s | %s |\n",
			id, step.Type, cell(step.Name), cell(step.Handler),
			ports(step.Ports.In), ports(step.Ports.Out))

		for _, c := range step.Connect {
			conns = append(conns, fmt.Sprintf("- `%s` %s → `%s` %s",
				id, orDefault(c.SrcOutPort), qualified(path, c.StepID), orDefault(c.DstInPort)))
		}
		return nil
	})

	if len(conns) > 0 {
		sb.WriteString("\n## Connections\n\n")
		sb.WriteString(strings.Join(conns, "\n") + "\n")
	}

	sb.WriteString("\n## Graph\n\n```mermaid\n")
	sb.WriteString(graph.GenerateMermaid(rule.Pipeline, nil))
	sb.WriteString("```\n")
	return sb.String()
}

func qualified(path []domain.StepID, id domain.StepID) string {
	parts := make([]string, 0, len(path)+1)
	for _, p := range path {
		parts = append(parts, string(p))
	}
	return strings.Join(append(parts, string(id)), "/")
}

func ports(names []string) string {
	return strings.Join(append([]string{domain.DefaultPort}, names...), ", ")
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

func orDefault(port string) string {
	if port == "" {
		return domain.DefaultPort
	}
	return port
}
