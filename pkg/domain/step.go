package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Connection is a directed edge from an out-port of one step to an in-port
// of the step identified by StepID.
type Connection struct {
	StepID     StepID `json:"stepId" yaml:"stepId"`
	SrcOutPort string `json:"srcOutPort" yaml:"srcOutPort"`
	DstInPort  string `json:"dstInPort" yaml:"dstInPort"`
}

// Options configures a new step.
type Options struct {
	// ID is the step id. When empty, IDs must be set and provides a fresh one.
	ID StepID

	// Name is an optional label.
	Name string

	// Handler is the step behavior. The zero value passes straight through.
	Handler Handler

	// Ports declares ports besides "default".
	Ports PortOptions

	// Props is copied into the step.
	Props Props

	// IDs is the id source of the graph being built. Explicit ids are reserved on it.
	IDs *IDGenerator
}

// Step is a node of the execution graph. Steps are built and wired before
// execution and are not safe for concurrent mutation.
type Step struct {
	id          StepID
	name        string
	typ         StepType
	handler     Handler
	in          Ports
	out         Ports
	props       Props
	connections map[string]Connection

	// scope is non-nil exactly when typ is StepTypeComposite.
	scope *compositeScope
}

// NewStep creates a step of the given type. Composite steps must be created
// with NewComposite.
func NewStep(typ StepType, opts Options) (*Step, error) {
	if !typ.Valid() || typ == StepTypeComposite {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStepType, typ)
	}
	return newStep(typ, opts)
}

// NewStart creates a start step. Its handler is never invoked.
func NewStart(opts Options) (*Step, error) {
	return newStep(StepTypeStart, opts)
}

// NewEnd creates an end step. Its handler is never invoked.
func NewEnd(opts Options) (*Step, error) {
	return newStep(StepTypeEnd, opts)
}

// NewError creates a pipeline-level error step. Its handler is never invoked.
func NewError(opts Options) (*Step, error) {
	return newStep(StepTypeError, opts)
}

// NewSingle creates a plain behavior step.
func NewSingle(opts Options) (*Step, error) {
	return newStep(StepTypeSingle, opts)
}

func newStep(typ StepType, opts Options) (*Step, error) {
	id := opts.ID
	switch {
	case id == "" && opts.IDs == nil:
		return nil, ErrMissingID
	case id == "":
		id = opts.IDs.Next()
	case opts.IDs != nil:
		opts.IDs.Reserve(id)
	}

	s := &Step{
		id:          id,
		name:        opts.Name,
		typ:         typ,
		handler:     opts.Handler,
		in:          newPorts(),
		out:         newPorts(),
		props:       maps.Clone(opts.Props),
		connections: make(map[string]Connection),
	}
	if s.props == nil {
		s.props = Props{}
	}
	if err := s.in.add(opts.Ports.In); err != nil {
		return nil, fmt.Errorf("step %s: %w", id, err)
	}
	if err := s.out.add(opts.Ports.Out); err != nil {
		return nil, fmt.Errorf("step %s: %w", id, err)
	}
	return s, nil
}

func (s *Step) ID() StepID       { return s.id }
func (s *Step) Name() string     { return s.name }
func (s *Step) Type() StepType   { return s.typ }
func (s *Step) Handler() Handler { return s.handler }

// Props returns a shallow copy of the step props.
func (s *Step) Props() Props {
	return maps.Clone(s.props)
}

// InPorts returns a copy of the in-port map.
func (s *Step) InPorts() Ports {
	return maps.Clone(s.in)
}

// OutPorts returns a copy of the out-port map.
func (s *Step) OutPorts() Ports {
	return maps.Clone(s.out)
}

// AddInPorts declares in-ports, enabled. Existing ports keep their flag.
func (s *Step) AddInPorts(names ...string) error {
	return s.in.add(names)
}

// AddOutPorts declares out-ports, enabled. Existing ports keep their flag.
func (s *Step) AddOutPorts(names ...string) error {
	return s.out.add(names)
}

// EnableInPort sets the enabled flag of a declared in-port.
func (s *Step) EnableInPort(name string, enabled bool) error {
	return s.in.enable("in", name, enabled)
}

// EnableOutPort sets the enabled flag of a declared out-port.
func (s *Step) EnableOutPort(name string, enabled bool) error {
	return s.out.enable("out", name, enabled)
}

// InPortEnabled fails with ErrUnknownPort for an undeclared port.
func (s *Step) InPortEnabled(name string) (bool, error) {
	return s.in.enabled("in", name)
}

// OutPortEnabled fails with ErrUnknownPort for an undeclared port.
func (s *Step) OutPortEnabled(name string) (bool, error) {
	return s.out.enabled("out", name)
}

func (s *Step) HasInPort(name string) bool {
	_, ok := s.in[name]
	return ok
}

func (s *Step) HasOutPort(name string) bool {
	_, ok := s.out[name]
	return ok
}

// ConnectTo connects srcOutPort of s to dstInPort of target, replacing any
// previous connection on srcOutPort. Empty port names mean "default".
// Both ports are checked immediately.
func (s *Step) ConnectTo(target *Step, srcOutPort, dstInPort string) error {
	if target == nil {
		return ErrNilStep
	}
	srcOutPort, dstInPort = portOrDefault(srcOutPort), portOrDefault(dstInPort)
	if !s.HasOutPort(srcOutPort) {
		return unknownPort("out", srcOutPort)
	}
	if !target.HasInPort(dstInPort) {
		return fmt.Errorf("step %s: %w", target.id, unknownPort("in", dstInPort))
	}
	s.connections[srcOutPort] = Connection{StepID: target.id, SrcOutPort: srcOutPort, DstInPort: dstInPort}
	return nil
}

// ConnectToID is ConnectTo for a target known only by id. The target and its
// in-port are resolved when the connection is traversed.
func (s *Step) ConnectToID(target StepID, srcOutPort, dstInPort string) error {
	if target == "" {
		return ErrMissingID
	}
	srcOutPort, dstInPort = portOrDefault(srcOutPort), portOrDefault(dstInPort)
	if !s.HasOutPort(srcOutPort) {
		return unknownPort("out", srcOutPort)
	}
	s.connections[srcOutPort] = Connection{StepID: target, SrcOutPort: srcOutPort, DstInPort: dstInPort}
	return nil
}

// Connection returns the connection on srcOutPort, or nil when none is set.
// An empty port name means "default".
func (s *Step) Connection(srcOutPort string) (*Connection, error) {
	srcOutPort = portOrDefault(srcOutPort)
	if !s.HasOutPort(srcOutPort) {
		return nil, unknownPort("out", srcOutPort)
	}
	c, ok := s.connections[srcOutPort]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Connections returns every outgoing connection ordered by source out-port.
func (s *Step) Connections() []Connection {
	ports := slices.Sorted(maps.Keys(s.connections))
	out := make([]Connection, 0, len(ports))
	for _, p := range ports {
		out = append(out, s.connections[p])
	}
	return out
}

func (s *Step) String() string {
	if s.name != "" {
		return fmt.Sprintf("%s(%s %q)", s.typ, s.id, s.name)
	}
	return fmt.Sprintf("%s(%s)", s.typ, s.id)
}

func portOrDefault(port string) string {
	if port == "" {
		return DefaultPort
	}
	return port
}
