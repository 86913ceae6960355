package domain

import (
	"errors"
	"strings"
)

// Construction errors. They are returned at the point of misuse and never
// reach an execution.
var (
	// ErrMissingID is returned when a step has neither an explicit id nor an id generator.
	ErrMissingID = errors.New("step id is empty and no id generator was given")

	// ErrInvalidPort is returned for an empty port name.
	ErrInvalidPort = errors.New("port name must not be empty")

	// ErrUnknownPort is returned when a port is not declared on the step.
	ErrUnknownPort = errors.New("port name doesn't exist")

	// ErrNilStep is returned when a nil step is added to a container.
	ErrNilStep = errors.New("step must not be nil")

	// ErrDuplicateStep is returned when a scope already holds a different step with the same id.
	ErrDuplicateStep = errors.New("duplicate step identifier")

	// ErrInvalidStepType is returned for a type tag outside StepTypes.
	ErrInvalidStepType = errors.New("unknown step type")

	// ErrNotComposite is returned when sub-graph operations target a non-composite step.
	ErrNotComposite = errors.New("step is not a composite")
)

// Traversal errors. They surface as the Cause or Inner of an ExecutorError.
var (
	ErrNoStartStep       = errors.New("start step doesn't exist")
	ErrStepNotFound      = errors.New("step doesn't exist")
	ErrNoEndStep         = errors.New("no end step")
	ErrInPortDisabled    = errors.New("in port is disabled")
	ErrOutPortDisabled   = errors.New("out port is disabled")
	ErrCompositeNoStart  = errors.New("composite step has no start step")
	ErrCompositeNoEnd    = errors.New("composite step has no end step")
	ErrCompositeWrongEnd = errors.New("last step is not the end step of the composite")
	ErrHandlerPanic      = errors.New("handler panic")
)

// ErrRunNotFound is returned when a run id cannot be found in a store.
var ErrRunNotFound = errors.New("run not found")

// ErrRuleNotFound is returned when a rule id is not known to a rule source.
var ErrRuleNotFound = errors.New("rule not found")

// ExecutorError is returned by a failed execution.
//
// Cause is the failure that ended the main walk. Inner is set when a
// pipeline-level error step was run to handle Cause and failed as well.
type ExecutorError struct {
	Message string
	Cause   error
	Inner   error
}

// NewExecutorError wraps cause (and optionally inner) as a step execution error.
func NewExecutorError(cause, inner error) *ExecutorError {
	return &ExecutorError{
		Message: "step execution error",
		Cause:   cause,
		Inner:   inner,
	}
}

func (e *ExecutorError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Inner != nil {
		b.WriteString(" (inner: ")
		b.WriteString(e.Inner.Error())
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes both Cause and Inner to errors.Is and errors.As.
func (e *ExecutorError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Inner != nil {
		errs = append(errs, e.Inner)
	}
	return errs
}
