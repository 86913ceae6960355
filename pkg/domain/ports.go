package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Ports maps a port name to its enabled flag.
type Ports map[string]bool

// PortOptions lists the ports declared on a step besides "default".
type PortOptions struct {
	In  []string `json:"in,omitempty" yaml:"in,omitempty"`
	Out []string `json:"out,omitempty" yaml:"out,omitempty"`
}

// Names returns the port names in sorted order, "default" first.
func (p Ports) Names() []string {
	names := slices.Collect(maps.Keys(p))
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == DefaultPort:
			return -1
		case b == DefaultPort:
			return 1
		case a < b:
			return -1
		}
		return 1
	})
	return names
}

func newPorts() Ports {
	return Ports{DefaultPort: true}
}

func (p Ports) add(names []string) error {
	for _, name := range names {
		if name == "" {
			return ErrInvalidPort
		}
	}
	for _, name := range names {
		// Re-declaring an existing port keeps its current flag.
		if _, ok := p[name]; !ok {
			p[name] = true
		}
	}
	return nil
}

func (p Ports) enable(direction, name string, enabled bool) error {
	if _, ok := p[name]; !ok {
		return unknownPort(direction, name)
	}
	p[name] = enabled
	return nil
}

func (p Ports) enabled(direction, name string) (bool, error) {
	enabled, ok := p[name]
	if !ok {
		return false, unknownPort(direction, name)
	}
	return enabled, nil
}

func unknownPort(direction, name string) error {
	return fmt.Errorf("%w: %s port %q", ErrUnknownPort, direction, name)
}
