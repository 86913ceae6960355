package domain

// StepType tags the behavioral variant of a step. It is fixed at construction.
type StepType string

const (
	StepTypeStart     StepType = "start"
	StepTypeEnd       StepType = "end"
	StepTypeError     StepType = "error"
	StepTypeSingle    StepType = "single"
	StepTypeComposite StepType = "composite"
)

// StepTypes lists every known step type in declaration order.
var StepTypes = []StepType{
	StepTypeStart,
	StepTypeEnd,
	StepTypeError,
	StepTypeSingle,
	StepTypeComposite,
}

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	for _, known := range StepTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Port names with a reserved meaning.
const (
	// DefaultPort exists on every step, in both directions.
	DefaultPort = "default"

	// ErrorPort is the out-port followed when a step fails.
	// It is not created implicitly; a step opts in by declaring it.
	ErrorPort = "error"
)
