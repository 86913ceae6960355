package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// Executor walks a step graph once. A new Executor is created for every
// execution; it keeps no state across runs.
type Executor struct {
	start   *domain.Step
	errStep *domain.Step
	steps   map[domain.StepID]*domain.Step
	logger  *slog.Logger

	mu        sync.RWMutex
	listeners listeners[StepListener]
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used for traversal debug output.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor binds an executor to a start step, an optional error step and
// the id-indexed steps their connections resolve against.
func NewExecutor(start, errStep *domain.Step, steps map[domain.StepID]*domain.Step, opts ...ExecutorOption) *Executor {
	e := &Executor{
		start:   start,
		errStep: errStep,
		steps:   steps,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) StartStep() *domain.Step { return e.start }
func (e *Executor) ErrorStep() *domain.Step { return e.errStep }

// Steps returns a copy of the top-level steps the executor resolves against.
func (e *Executor) Steps() map[domain.StepID]*domain.Step {
	return maps.Clone(e.steps)
}

// AddListener subscribes l to the step events of this executor.
func (e *Executor) AddListener(l StepListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners.add(l)
}

// RemoveListener unsubscribes l.
func (e *Executor) RemoveListener(l StepListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners.remove(l)
}

// Start runs the graph with data as context. A nil data is replaced by an
// empty Context. On success the same context is returned; on failure the
// error is an *domain.ExecutorError.
func (e *Executor) Start(ctx context.Context, data domain.Context) (domain.Context, error) {
	if data == nil {
		data = domain.Context{}
	}

	if e.start == nil {
		return e.handleError(ctx, data, domain.ErrNoStartStep)
	}

	if err := e.run(ctx, e.start, data, nil); err != nil {
		return e.handleError(ctx, data, err)
	}
	return data, nil
}

// handleError re-enters the graph at the pipeline error step with cause in flight.
func (e *Executor) handleError(ctx context.Context, data domain.Context, cause error) (domain.Context, error) {
	if e.errStep == nil {
		return nil, domain.NewExecutorError(cause, nil)
	}

	e.logger.Debug("Entering error step", "step", e.errStep.ID(), "cause", cause)
	if err := e.run(ctx, e.errStep, data, cause); err != nil {
		return nil, domain.NewExecutorError(cause, err)
	}
	return data, nil
}

// run walks a top-level path and checks that it ended on an end step.
func (e *Executor) run(ctx context.Context, from *domain.Step, data domain.Context, inflight error) error {
	last, outPort, err := e.walk(ctx, from, domain.DefaultPort, e.steps, data, inflight)
	if err != nil {
		return err
	}
	if last != nil && last.Type() != domain.StepTypeEnd {
		return fmt.Errorf("%w: step_id(%s), out_port(%s)", domain.ErrNoEndStep, last.ID(), outPort)
	}
	return nil
}

// hop is the next position of a walk. A hop without a step means the path
// ended on outPort of the previous step.
type hop struct {
	step    *domain.Step
	inPort  string
	outPort string
}

// walk visits steps from start until a path ends. It returns the last step
// visited and the out-port the path ended on ("" after an end step).
func (e *Executor) walk(
	ctx context.Context,
	start *domain.Step,
	inPort string,
	steps map[domain.StepID]*domain.Step,
	data domain.Context,
	inflight error,
) (*domain.Step, string, error) {
	current := &hop{step: start, inPort: inPort}
	var last *domain.Step

	for current != nil && current.step != nil {
		step := current.step
		last = step

		e.emitStepBegin(ctx, step, current.inPort)

		next, err := e.next(ctx, current, steps, data, inflight)
		if err != nil {
			e.emitStepError(ctx, step, err)

			routed, routeErr := e.routeError(step, steps, err)
			if routeErr != nil {
				// No out-port was resolved for this step.
				e.emitStepEnd(ctx, step, "")
				return last, "", routeErr
			}
			next = routed
			inflight = err
		}

		outPort := domain.DefaultPort
		if next != nil {
			outPort = next.outPort
		}
		e.emitStepEnd(ctx, step, outPort)

		current = next
	}

	if current == nil {
		return last, "", nil
	}
	return last, current.outPort, nil
}

// next dispatches one step by type and resolves the following hop.
func (e *Executor) next(
	ctx context.Context,
	current *hop,
	steps map[domain.StepID]*domain.Step,
	data domain.Context,
	inflight error,
) (*hop, error) {
	step := current.step

	switch step.Type() {
	case domain.StepTypeStart, domain.StepTypeError:
		return e.follow(step, steps, domain.DefaultPort)
	case domain.StepTypeEnd:
		return nil, nil
	}

	enabled, err := step.InPortEnabled(current.inPort)
	if err != nil {
		return nil, fmt.Errorf("step_id(%s): %w", step.ID(), err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: step_id(%s), in_port(%s)", domain.ErrInPortDisabled, step.ID(), current.inPort)
	}

	var outPort string
	if composite, ok := domain.AsComposite(step); ok {
		outPort, err = e.enterComposite(ctx, composite, current.inPort, data, inflight)
	} else {
		outPort, err = step.Handler().Call(inflight, data, current.inPort, step.Props())
	}
	if err != nil {
		return nil, err
	}
	if outPort == "" {
		outPort = domain.DefaultPort
	}

	enabled, err = step.OutPortEnabled(outPort)
	if err != nil {
		return nil, fmt.Errorf("step_id(%s): %w", step.ID(), err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: step_id(%s), out_port(%s)", domain.ErrOutPortDisabled, step.ID(), outPort)
	}

	e.logger.Debug("Step resolved", "step", step.ID(), "type", step.Type(), "in_port", current.inPort, "out_port", outPort)
	return e.follow(step, steps, outPort)
}

// follow resolves the connection on srcOutPort against steps.
func (e *Executor) follow(step *domain.Step, steps map[domain.StepID]*domain.Step, srcOutPort string) (*hop, error) {
	conn, err := step.Connection(srcOutPort)
	if err != nil {
		return nil, fmt.Errorf("step_id(%s): %w", step.ID(), err)
	}
	if conn == nil {
		return &hop{outPort: srcOutPort}, nil
	}

	target, ok := steps[conn.StepID]
	if !ok {
		return nil, fmt.Errorf("%w: step_id(%s)", domain.ErrStepNotFound, conn.StepID)
	}
	return &hop{step: target, inPort: conn.DstInPort, outPort: conn.SrcOutPort}, nil
}

// routeError follows the error out-port of step when it is declared and
// connected; otherwise it hands err back.
func (e *Executor) routeError(step *domain.Step, steps map[domain.StepID]*domain.Step, err error) (*hop, error) {
	if !step.HasOutPort(domain.ErrorPort) {
		return nil, err
	}
	conn, connErr := step.Connection(domain.ErrorPort)
	if connErr != nil || conn == nil {
		return nil, err
	}
	e.logger.Debug("Routing to error port", "step", step.ID(), "target", conn.StepID, "err", err)
	return e.follow(step, steps, domain.ErrorPort)
}

// enterComposite walks the private sub-graph of c. The walk must end on the
// registered end step; the composite resolves to the out-port it ended on.
func (e *Executor) enterComposite(
	ctx context.Context,
	c *domain.Composite,
	inPort string,
	data domain.Context,
	inflight error,
) (string, error) {
	start, end := c.StartStep(), c.EndStep()
	if start == nil {
		return "", fmt.Errorf("%w: step_id(%s)", domain.ErrCompositeNoStart, c.ID())
	}
	if end == nil {
		return "", fmt.Errorf("%w: step_id(%s)", domain.ErrCompositeNoEnd, c.ID())
	}

	last, outPort, err := e.walk(ctx, start, inPort, c.StepMap(), data, inflight)
	if err != nil {
		return "", err
	}
	if last != nil && last != end {
		return "", fmt.Errorf("%w: step_id(%s), last_step(%s)", domain.ErrCompositeWrongEnd, c.ID(), last.ID())
	}
	return outPort, nil
}

func (e *Executor) snapshot() []StepListener {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listeners.snapshot()
}

func (e *Executor) emitStepBegin(ctx context.Context, step *domain.Step, inPort string) {
	e.logger.Debug("Step begin", "step", step.ID(), "type", step.Type(), "in_port", inPort)
	for _, l := range e.snapshot() {
		l.StepBegin(ctx, step, inPort)
	}
}

func (e *Executor) emitStepEnd(ctx context.Context, step *domain.Step, outPort string) {
	for _, l := range e.snapshot() {
		l.StepEnd(ctx, step, outPort)
	}
}

func (e *Executor) emitStepError(ctx context.Context, step *domain.Step, err error) {
	e.logger.Debug("Step error", "step", step.ID(), "type", step.Type(), "err", err)
	for _, l := range e.snapshot() {
		l.StepError(ctx, step, err)
	}
}
