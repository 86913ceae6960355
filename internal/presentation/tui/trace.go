package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/muesli/termenv"
)

// TracePrinter writes one colored line per pipeline and step event. Steps of
// a composite are indented under it.
type TracePrinter struct {
	out *termenv.Output

	mu    sync.Mutex
	depth int
}

// TraceOption configures a TracePrinter.
type TraceOption func(*[]termenv.OutputOption)

// Plain disables colors, for output that is not a terminal.
func Plain() TraceOption {
	return func(opts *[]termenv.OutputOption) {
		*opts = append(*opts, termenv.WithProfile(termenv.Ascii))
	}
}

// NewTracePrinter creates a printer writing to w.
func NewTracePrinter(w io.Writer, opts ...TraceOption) *TracePrinter {
	var outOpts []termenv.OutputOption
	for _, opt := range opts {
		opt(&outOpts)
	}
	return &TracePrinter{out: termenv.NewOutput(w, outOpts...)}
}

// Attach subscribes the printer to every execution of p. The returned
// function unsubscribes it.
func (t *TracePrinter) Attach(p *pipeline.Pipeline) func() {
	p.AddListener(t)
	return func() { p.RemoveListener(t) }
}

func (t *TracePrinter) ExecuteStart(_ context.Context, ex *pipeline.Executor) {
	t.mu.Lock()
	t.depth = 0
	t.mu.Unlock()

	t.line(0, t.style("▶ execute", "#818cf8").Bold(), fmt.Sprintf("(%d steps)", len(ex.Steps())))
	ex.AddListener(t)
}

func (t *TracePrinter) ExecuteEnd(_ context.Context, ex *pipeline.Executor) {
	ex.RemoveListener(t)
	t.line(0, t.style("■ end", "#818cf8").Bold())
}

func (t *TracePrinter) ExecuteError(_ context.Context, _ *pipeline.Executor, err error) {
	t.line(0, t.style("✗ failed", "#f87171").Bold(), err.Error())
}

func (t *TracePrinter) StepBegin(_ context.Context, step *domain.Step, inPort string) {
	t.mu.Lock()
	depth := t.depth
	t.depth++
	t.mu.Unlock()

	t.line(depth+1, t.style("→", "#34d399"), stepLabel(step), t.port(inPort))
}

func (t *TracePrinter) StepEnd(_ context.Context, step *domain.Step, outPort string) {
	t.mu.Lock()
	t.depth--
	depth := t.depth
	t.mu.Unlock()

	if step.Type() == domain.StepTypeEnd {
		return
	}
	t.line(depth+1, t.style("←", "#a78bfa"), stepLabel(step), t.port(outPort))
}

func (t *TracePrinter) StepError(_ context.Context, step *domain.Step, err error) {
	t.mu.Lock()
	depth := t.depth - 1
	t.mu.Unlock()

	t.line(depth+1, t.style("!", "#f87171").Bold(), stepLabel(step), t.style(err.Error(), "#f87171"))
}

func (t *TracePrinter) style(s, color string) termenv.Style {
	return t.out.String(s).Foreground(t.out.Color(color))
}

func (t *TracePrinter) port(name string) termenv.Style {
	if name == "" {
		return t.out.String("[-]").Faint()
	}
	return t.out.String("[" + name + "]").Faint()
}

func (t *TracePrinter) line(depth int, parts ...any) {
	if depth < 0 {
		depth = 0
	}
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = fmt.Sprint(p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s%s\n", strings.Repeat("  ", depth), strings.Join(fields, " "))
}

func stepLabel(step *domain.Step) string {
	if step.Name() != "" {
		return fmt.Sprintf("%s %s (%s)", step.Type(), step.ID(), step.Name())
	}
	return fmt.Sprintf("%s %s", step.Type(), step.ID())
}
