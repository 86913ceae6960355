package observability

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// Debug logs the event stream of a pipeline at debug level.
type Debug struct {
	p      *pipeline.Pipeline
	logger *slog.Logger
	runID  string

	mu        sync.Mutex
	executors map[*pipeline.Executor]struct{}
}

// DebugOption configures a Debug logger.
type DebugOption func(*Debug)

// ForRun restricts the logger to the execution whose context carries id
// (see WithRunID). Concurrent executions of the same pipeline are skipped.
func ForRun(id string) DebugOption {
	return func(d *Debug) {
		d.runID = id
	}
}

// Attach subscribes a Debug logger to p. Records carry "logger" = name.
func Attach(p *pipeline.Pipeline, logger *slog.Logger, name string, opts ...DebugOption) *Debug {
	d := &Debug{
		p:         p,
		executors: make(map[*pipeline.Executor]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logger.With("logger", name)
	if d.runID != "" {
		d.logger = d.logger.With("run", d.runID)
	}
	p.AddListener(d)
	return d
}

func (d *Debug) follows(ctx context.Context) bool {
	return d.runID == "" || RunID(ctx) == d.runID
}

// Detach removes every subscription of d, including those on executions
// still in flight.
func (d *Debug) Detach() {
	d.p.RemoveListener(d)

	d.mu.Lock()
	defer d.mu.Unlock()
	for ex := range d.executors {
		ex.RemoveListener(d)
	}
	clear(d.executors)
}

func (d *Debug) ExecuteStart(ctx context.Context, ex *pipeline.Executor) {
	if !d.follows(ctx) {
		return
	}
	ids := make([]string, 0)
	for id := range ex.Steps() {
		ids = append(ids, string(id))
	}
	slices.SortFunc(ids, func(a, b string) int {
		return domain.StepID(a).Compare(domain.StepID(b))
	})
	d.logger.DebugContext(ctx, "start execute", "all_steps", strings.Join(ids, ","))

	d.mu.Lock()
	d.executors[ex] = struct{}{}
	d.mu.Unlock()
	ex.AddListener(d)
}

func (d *Debug) ExecuteEnd(ctx context.Context, ex *pipeline.Executor) {
	if !d.follows(ctx) {
		return
	}
	d.logger.DebugContext(ctx, "end execute")

	ex.RemoveListener(d)
	d.mu.Lock()
	delete(d.executors, ex)
	d.mu.Unlock()
}

func (d *Debug) ExecuteError(ctx context.Context, ex *pipeline.Executor, err error) {
	if !d.follows(ctx) {
		return
	}
	d.logger.DebugContext(ctx, "execute error", errorAttrs(err)...)
}

func (d *Debug) StepBegin(ctx context.Context, step *domain.Step, inPort string) {
	d.logger.DebugContext(ctx, "step begin",
		"id", step.ID(),
		"name", step.Name(),
		"in_port", inPort,
		"type", step.Type(),
		"props", step.Props(),
	)
}

func (d *Debug) StepEnd(ctx context.Context, step *domain.Step, outPort string) {
	d.logger.DebugContext(ctx, "step end",
		"id", step.ID(),
		"name", step.Name(),
		"out_port", outPort,
		"type", step.Type(),
		"props", step.Props(),
	)
}

func (d *Debug) StepError(ctx context.Context, step *domain.Step, err error) {
	attrs := append([]any{"id", step.ID(), "type", step.Type()}, errorAttrs(err)...)
	d.logger.DebugContext(ctx, "step error", attrs...)
}

// errorAttrs splits an executor error into its cause and inner failure.
func errorAttrs(err error) []any {
	attrs := []any{"err", err}
	var ee *domain.ExecutorError
	if errors.As(err, &ee) {
		if ee.Cause != nil {
			attrs = append(attrs, "cause", ee.Cause)
		}
		if ee.Inner != nil {
			attrs = append(attrs, "inner", ee.Inner)
		}
	}
	return attrs
}
