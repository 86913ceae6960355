package compiler

import (
	"bytes"
	"fmt"
	"go/format"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
)

// GenerateOptions names the generated package and function.
type GenerateOptions struct {
	// Package is the package clause. Defaults to "rules".
	Package string
	// Func is the builder function name. Defaults to "New" followed by the
	// description name in camel case.
	Func string
}

// Generate writes gofmt'ed Go source containing
//
//	func <Func>(reg *registry.Registry, opts ...pipeline.Option) (*pipeline.Pipeline, error)
//
// which builds def exactly as Compile does.
func Generate(def *definition.Definition, opts GenerateOptions) ([]byte, error) {
	if def == nil {
		return nil, fmt.Errorf("generate: nil description")
	}
	if opts.Package == "" {
		opts.Package = "rules"
	}
	if opts.Func == "" {
		opts.Func = "New" + exportedName(def.Name)
	}

	g := &generation{
		Package:     opts.Package,
		Func:        opts.Func,
		Name:        def.Name,
		Description: strings.ReplaceAll(strings.TrimSpace(def.Description), "\n", "\n// "),
	}
	top, err := g.scope(def.Steps)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", def.Name, err)
	}
	g.TopLevel = strings.Join(top, ", ")

	var buf bytes.Buffer
	if err := sourceTemplate.Execute(&buf, g); err != nil {
		return nil, fmt.Errorf("generate %s: %w", def.Name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generate %s: format: %w", def.Name, err)
	}
	return src, nil
}

type generation struct {
	Package     string
	Func        string
	Name        string
	Description string
	UsesHandler bool

	Steps       []genStep
	Composites  []genComposite
	Connections []genConnection
	TopLevel    string

	counter int
}

type genStep struct {
	Var       string
	Ctor      string
	ID        string
	Name      string
	Handler   string
	Ports     string
	Props     string
	Composite bool
}

type genComposite struct {
	Var      string
	Start    string
	End      string
	Children string
	In       string
	Out      string
}

type genConnection struct {
	From string
	To   string
	Src  string
	Dst  string
}

// scope mirrors compilation.scope and returns the *domain.Step expressions
// of the scope in description order.
func (g *generation) scope(defs []definition.StepDef) ([]string, error) {
	refs := make(map[domain.StepID]string, len(defs))
	ordered := make([]string, 0, len(defs))

	for i := range defs {
		def := &defs[i]
		if _, dup := refs[def.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateStep, def.ID)
		}

		step, err := g.step(def)
		if err != nil {
			return nil, err
		}
		g.Steps = append(g.Steps, step)

		ref := step.Var
		if step.Composite {
			ref += ".Step"
		}
		refs[def.ID] = ref
		ordered = append(ordered, ref)
	}

	for i := range defs {
		def := &defs[i]
		if !def.IsComposite() {
			continue
		}
		children, err := g.scope(def.Steps)
		if err != nil {
			return nil, fmt.Errorf("composite %s: %w", def.ID, err)
		}
		start, end := childRef(def, def.StartID, children), childRef(def, def.EndID, children)
		if start == "" || end == "" {
			return nil, fmt.Errorf("composite %s: %w: start %q, end %q", def.ID, domain.ErrStepNotFound, def.StartID, def.EndID)
		}
		g.Composites = append(g.Composites, genComposite{
			Var:      strings.TrimSuffix(refs[def.ID], ".Step"),
			Start:    start,
			End:      end,
			Children: strings.Join(children, ", "),
			In:       stringsLiteral(def.Ports.In),
			Out:      stringsLiteral(def.Ports.Out),
		})
	}

	for i := range defs {
		def := &defs[i]
		for _, conn := range def.Connect {
			to, ok := refs[conn.StepID]
			if !ok {
				return nil, fmt.Errorf("step %s: %w: %s", def.ID, domain.ErrStepNotFound, conn.StepID)
			}
			g.Connections = append(g.Connections, genConnection{
				From: refs[def.ID],
				To:   to,
				Src:  strconv.Quote(portOrDefault(conn.SrcOutPort)),
				Dst:  strconv.Quote(portOrDefault(conn.DstInPort)),
			})
		}
	}

	return ordered, nil
}

func (g *generation) step(def *definition.StepDef) (genStep, error) {
	g.counter++
	step := genStep{
		Var:   fmt.Sprintf("s%d", g.counter),
		ID:    strconv.Quote(string(def.ID)),
		Ports: portsLiteral(def.Ports),
	}
	if def.Name != "" {
		step.Name = strconv.Quote(def.Name)
	}
	if def.Handler != "" {
		step.Handler = strconv.Quote(def.Handler)
		g.UsesHandler = true
	}
	if len(def.Props) > 0 {
		props, err := literal(def.Props)
		if err != nil {
			return genStep{}, fmt.Errorf("step %s: props: %w", def.ID, err)
		}
		step.Props = "domain.Props" + strings.TrimPrefix(props, "map[string]any")
	}

	switch def.Type {
	case domain.StepTypeStart:
		step.Ctor = "domain.NewStart"
	case domain.StepTypeEnd:
		step.Ctor = "domain.NewEnd"
	case domain.StepTypeError:
		step.Ctor = "domain.NewError"
	case domain.StepTypeSingle:
		step.Ctor = "domain.NewSingle"
	case domain.StepTypeComposite:
		step.Var = fmt.Sprintf("c%d", g.counter)
		step.Ctor = "domain.NewComposite"
		step.Composite = true
	default:
		return genStep{}, fmt.Errorf("step %s: %w: %q", def.ID, domain.ErrInvalidStepType, def.Type)
	}
	return step, nil
}

func childRef(def *definition.StepDef, id domain.StepID, refs []string) string {
	for i, child := range def.Steps {
		if child.ID == id {
			return refs[i]
		}
	}
	return ""
}

func portsLiteral(p definition.PortsDef) string {
	var parts []string
	if len(p.In) > 0 {
		parts = append(parts, "In: "+stringsLiteral(p.In))
	}
	if len(p.Out) > 0 {
		parts = append(parts, "Out: "+stringsLiteral(p.Out))
	}
	if len(parts) == 0 {
		return ""
	}
	return "domain.PortOptions{" + strings.Join(parts, ", ") + "}"
}

func stringsLiteral(values []string) string {
	if len(values) == 0 {
		return ""
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

func portOrDefault(port string) string {
	if port == "" {
		return domain.DefaultPort
	}
	return port
}

// literal renders a decoded description value as a Go expression.
func literal(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "nil", nil
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return fmt.Sprintf("int64(%d)", v), nil
	case uint64:
		return fmt.Sprintf("uint64(%d)", v), nil
	case float64:
		return fmt.Sprintf("float64(%s)", strconv.FormatFloat(v, 'g', -1, 64)), nil
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			s, err := literal(item)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[]any{" + strings.Join(items, ", ") + "}", nil
	case map[string]any:
		keys := slices.Sorted(maps.Keys(v))
		items := make([]string, len(keys))
		for i, key := range keys {
			s, err := literal(v[key])
			if err != nil {
				return "", err
			}
			items[i] = strconv.Quote(key) + ": " + s
		}
		return "map[string]any{" + strings.Join(items, ", ") + "}", nil
	}
	return "", fmt.Errorf("unsupported value of type %T", v)
}

// exportedName turns "approve-order" into "ApproveOrder".
func exportedName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if b.Len() == 0 && unicode.IsDigit(r) {
				b.WriteString("Rule")
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = true
		}
	}
	if b.Len() == 0 {
		return "Rule"
	}
	return b.String()
}

var sourceTemplate = template.Must(template.New("source").Parse(`// Code generated by ruleflow gen. DO NOT EDIT.

package {{.Package}}

import (
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
)

// {{.Func}} builds the {{printf "%q" .Name}} rule.{{if .Description}}
//
// {{.Description}}{{end}}
func {{.Func}}(reg *registry.Registry, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	p := pipeline.New(append([]pipeline.Option{pipeline.WithName({{printf "%q" .Name}})}, opts...)...)
	ids := p.IDs()
{{- if .UsesHandler}}
	var h domain.Handler
{{- end}}
{{range .Steps}}
{{- if .Handler}}
	{
		entry, err := reg.Entry({{.Handler}})
		if err != nil {
			return nil, err
		}
		if err := reg.ValidateProps({{.Handler}}, {{if .Props}}{{.Props}}{{else}}nil{{end}}); err != nil {
			return nil, err
		}
		h = entry.Handler
	}
{{- end}}
	{{.Var}}, err := {{.Ctor}}(domain.Options{
		ID: {{.ID}},
		{{- if .Name}}
		Name: {{.Name}},
		{{- end}}
		{{- if .Handler}}
		Handler: h,
		{{- end}}
		{{- if .Ports}}
		Ports: {{.Ports}},
		{{- end}}
		{{- if .Props}}
		Props: {{.Props}},
		{{- end}}
		IDs: ids,
	})
	if err != nil {
		return nil, err
	}
{{end}}
{{- range .Composites}}
	if err := {{.Var}}.SetStartStep({{.Start}}); err != nil {
		return nil, err
	}
	if err := {{.Var}}.SetEndStep({{.End}}); err != nil {
		return nil, err
	}
	if err := {{.Var}}.Add({{.Children}}); err != nil {
		return nil, err
	}
	{{- if .In}}
	if err := {{.Var}}.AddInPorts({{.In}}...); err != nil {
		return nil, err
	}
	{{- end}}
	{{- if .Out}}
	if err := {{.Var}}.AddOutPorts({{.Out}}...); err != nil {
		return nil, err
	}
	{{- end}}
{{end}}
{{- range .Connections}}
	if err := {{.From}}.ConnectTo({{.To}}, {{.Src}}, {{.Dst}}); err != nil {
		return nil, err
	}
{{- end}}

	if err := p.Add({{.TopLevel}}); err != nil {
		return nil, err
	}
	return p, nil
}
`))
