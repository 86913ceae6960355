package observability

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/ports"
	"github.com/google/uuid"
)

type runIDKey struct{}

// WithRunID returns a context carrying the run id of an execution.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id carried by ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Recorder executes pipelines and keeps a RunRecord of every execution.
type Recorder struct {
	store  ports.RunStore
	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used to report store failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a recorder saving to store. A nil store keeps records
// only in the return values.
func NewRecorder(store ports.RunStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs p with data and records the run. The run id is taken from
// ctx (see WithRunID) or generated. A failure to save the record is logged
// and does not change the outcome of the execution.
func (r *Recorder) Execute(ctx context.Context, p *pipeline.Pipeline, data domain.Context) (domain.Context, *domain.RunRecord, error) {
	id := RunID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = WithRunID(ctx, id)
	}
	if data == nil {
		data = domain.Context{}
	}

	trace := &tracer{id: id, run: domain.NewRunRecord(id, p.Name())}
	p.AddListener(trace)
	result, err := p.Execute(ctx, data)
	p.RemoveListener(trace)

	run := trace.finish(data, err)
	if r.store != nil {
		if saveErr := r.store.Save(ctx, run); saveErr != nil {
			r.logger.Error("Failed to save run", "run", id, "rule", run.Rule, "err", saveErr)
		}
	}
	return result, run, err
}

// tracer collects the events of the execution tagged with its run id.
// Other executions of the same pipeline running concurrently are ignored.
type tracer struct {
	id string

	mu  sync.Mutex
	run *domain.RunRecord
}

func (t *tracer) append(entry domain.TraceEntry) {
	entry.Timestamp = time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Trace = append(t.run.Trace, entry)
}

func stepEntry(typ domain.EventType, step *domain.Step, port string) domain.TraceEntry {
	return domain.TraceEntry{
		Type:     typ,
		StepID:   step.ID(),
		StepName: step.Name(),
		StepType: step.Type(),
		Port:     port,
	}
}

func (t *tracer) ExecuteStart(ctx context.Context, ex *pipeline.Executor) {
	if RunID(ctx) != t.id {
		return
	}
	t.append(domain.TraceEntry{Type: domain.EventExecuteStart})
	ex.AddListener(t)
}

func (t *tracer) ExecuteError(ctx context.Context, ex *pipeline.Executor, err error) {
	if RunID(ctx) != t.id {
		return
	}
	t.append(domain.TraceEntry{Type: domain.EventExecuteError, Error: err.Error()})
}

func (t *tracer) ExecuteEnd(ctx context.Context, ex *pipeline.Executor) {
	if RunID(ctx) != t.id {
		return
	}
	ex.RemoveListener(t)
	t.append(domain.TraceEntry{Type: domain.EventExecuteEnd})
}

func (t *tracer) StepBegin(ctx context.Context, step *domain.Step, inPort string) {
	t.append(stepEntry(domain.EventStepBegin, step, inPort))
}

func (t *tracer) StepEnd(ctx context.Context, step *domain.Step, outPort string) {
	t.append(stepEntry(domain.EventStepEnd, step, outPort))
}

func (t *tracer) StepError(ctx context.Context, step *domain.Step, err error) {
	entry := stepEntry(domain.EventStepError, step, "")
	entry.Error = err.Error()
	t.append(entry)
}

// finish completes the record with the outcome of the execution.
func (t *tracer) finish(data domain.Context, err error) *domain.RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	run := t.run
	run.FinishedAt = time.Now()
	run.Context = map[string]any(data)
	run.Status = domain.RunStatusSucceeded
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
	}
	return run
}
