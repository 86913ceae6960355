package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// Pipeline is an addressable collection of top-level steps with one start
// step and at most one error step. It is the entry point for execution.
//
// Building (Add, Remove, listener changes) is safe to interleave with
// concurrent Execute calls; each execution works on a snapshot of the
// top-level step map taken when it starts.
type Pipeline struct {
	name   string
	logger *slog.Logger
	ids    *domain.IDGenerator

	mu        sync.RWMutex
	steps     *domain.StepSet
	start     *domain.Step
	errStep   *domain.Step
	listeners listeners[ExecutionListener]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithName sets the pipeline name used in logs and by observers.
func WithName(name string) Option {
	return func(p *Pipeline) {
		p.name = name
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithIDGenerator shares an id generator with the caller.
func WithIDGenerator(ids *domain.IDGenerator) Option {
	return func(p *Pipeline) {
		p.ids = ids
	}
}

// WithListener subscribes l to execution events.
func WithListener(l ExecutionListener) Option {
	return func(p *Pipeline) {
		p.listeners.add(l)
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  domain.NewStepSet(),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ids == nil {
		p.ids = domain.NewIDGenerator()
	}
	if p.name != "" {
		p.logger = p.logger.With("pipeline", p.name)
	}
	return p
}

func (p *Pipeline) Name() string { return p.name }

// IDs is the id generator steps of this pipeline should be built with.
func (p *Pipeline) IDs() *domain.IDGenerator { return p.ids }

// Add registers steps. The last added start step becomes the start step and
// the last added error step becomes the error step. Nothing is added when
// any step is nil or clashes with a different step of the same id.
func (p *Pipeline) Add(steps ...*domain.Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.steps.AddAll(steps...); err != nil {
		return err
	}
	for _, step := range steps {
		switch step.Type() {
		case domain.StepTypeStart:
			p.start = step
		case domain.StepTypeError:
			p.errStep = step
		}
	}
	return nil
}

// Remove drops the step with the given id. Removing the current start or
// error step also clears that slot.
func (p *Pipeline) Remove(id domain.StepID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := p.steps.Remove(id)
	if removed == nil {
		return
	}
	if removed == p.start {
		p.start = nil
	}
	if removed == p.errStep {
		p.errStep = nil
	}
}

// GetStep returns the top-level step with the given id, or nil.
func (p *Pipeline) GetStep(id domain.StepID) *domain.Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.steps.Get(id)
}

// Steps returns the top-level steps ordered by id.
func (p *Pipeline) Steps() []*domain.Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.steps.Sorted()
}

func (p *Pipeline) StartStep() *domain.Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.start
}

func (p *Pipeline) ErrorStep() *domain.Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.errStep
}

// AddListener subscribes l to execution events.
func (p *Pipeline) AddListener(l ExecutionListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners.add(l)
}

// RemoveListener unsubscribes l.
func (p *Pipeline) RemoveListener(l ExecutionListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners.remove(l)
}

// Execute runs the pipeline once with data as context and returns it.
//
// ExecuteStart is emitted before traversal, ExecuteError when it fails and
// ExecuteEnd always. The engine never copies data: concurrent executions
// sharing one context race on it.
func (p *Pipeline) Execute(ctx context.Context, data domain.Context) (domain.Context, error) {
	p.mu.RLock()
	ex := NewExecutor(p.start, p.errStep, p.steps.Map(), WithExecutorLogger(p.logger))
	p.mu.RUnlock()

	defer func() {
		for _, l := range p.snapshot() {
			l.ExecuteEnd(ctx, ex)
		}
	}()

	for _, l := range p.snapshot() {
		l.ExecuteStart(ctx, ex)
	}

	p.logger.Debug("Execute start", "all_steps", len(ex.steps))
	result, err := ex.Start(ctx, data)
	if err != nil {
		p.logger.Debug("Execute failed", "err", err)
		for _, l := range p.snapshot() {
			l.ExecuteError(ctx, ex, err)
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) snapshot() []ExecutionListener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listeners.snapshot()
}
