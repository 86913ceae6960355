package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// graph builds steps on one id generator and fails the test on misuse.
type graph struct {
	t   *testing.T
	ids *domain.IDGenerator
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	return &graph{t: t, ids: domain.NewIDGenerator()}
}

func (g *graph) step(ctor func(domain.Options) (*domain.Step, error), opts domain.Options) *domain.Step {
	g.t.Helper()
	opts.IDs = g.ids
	s, err := ctor(opts)
	if err != nil {
		g.t.Fatalf("failed to build step: %v", err)
	}
	return s
}

func (g *graph) start() *domain.Step { return g.step(domain.NewStart, domain.Options{}) }
func (g *graph) end() *domain.Step   { return g.step(domain.NewEnd, domain.Options{}) }
func (g *graph) errorStep() *domain.Step {
	return g.step(domain.NewError, domain.Options{})
}

func (g *graph) single(h domain.Handler, in, out []string) *domain.Step {
	return g.step(domain.NewSingle, domain.Options{Handler: h, Ports: domain.PortOptions{In: in, Out: out}})
}

func (g *graph) composite() *domain.Composite {
	g.t.Helper()
	c, err := domain.NewComposite(domain.Options{IDs: g.ids})
	if err != nil {
		g.t.Fatalf("failed to build composite: %v", err)
	}
	return c
}

func connect(t *testing.T, from, to *domain.Step, out, in string) {
	t.Helper()
	if err := from.ConnectTo(to, out, in); err != nil {
		t.Fatalf("failed to connect %s -> %s: %v", from, to, err)
	}
}

func add(t *testing.T, p *pipeline.Pipeline, steps ...*domain.Step) {
	t.Helper()
	if err := p.Add(steps...); err != nil {
		t.Fatalf("failed to add steps: %v", err)
	}
}

type stepEvent struct {
	kind string
	step *domain.Step
	port string
	err  error
}

// recorder collects the step events of every execution of a pipeline.
type recorder struct {
	mu     sync.Mutex
	events []stepEvent
}

func record(p *pipeline.Pipeline) *recorder {
	r := &recorder{}
	p.AddListener(&pipeline.ExecutionHooks{
		OnExecuteStart: func(_ context.Context, ex *pipeline.Executor) {
			ex.AddListener(r)
		},
	})
	return r
}

func (r *recorder) StepBegin(_ context.Context, step *domain.Step, inPort string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, stepEvent{kind: "begin", step: step, port: inPort})
}

func (r *recorder) StepEnd(_ context.Context, step *domain.Step, outPort string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, stepEvent{kind: "end", step: step, port: outPort})
}

func (r *recorder) StepError(_ context.Context, step *domain.Step, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, stepEvent{kind: "error", step: step, err: err})
}

func (r *recorder) of(kind string) []stepEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stepEvent
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind+":"+string(e.step.ID()))
	}
	return out
}
