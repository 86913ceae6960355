// Package registry maps handler names used in rule descriptions to
// domain.Handler values.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/schema"
)

// ErrHandlerNotFound is returned when a name has no registered handler.
var ErrHandlerNotFound = errors.New("handler not found")

// Entry is a registered handler with its documentation.
type Entry struct {
	Name        string
	Description string
	Handler     domain.Handler
	// Props describes the props the handler reads. Nil means unchecked.
	Props schema.Schema
}

// Registry manages the available handlers.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the "log" built-in.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// RegisterOption configures a registration.
type RegisterOption func(*Entry)

// WithDescription documents what the handler does.
func WithDescription(text string) RegisterOption {
	return func(e *Entry) {
		e.Description = text
	}
}

// WithProps declares the props the handler expects.
func WithProps(s schema.Schema) RegisterOption {
	return func(e *Entry) {
		e.Props = s
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]Entry),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithBuiltins creates a registry preloaded with the built-in handlers.
func NewWithBuiltins(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	registerBuiltins(r)
	return r
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, h domain.Handler, opts ...RegisterOption) {
	e := Entry{Name: name, Handler: h}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = e
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (domain.Handler, error) {
	e, err := r.Entry(name)
	if err != nil {
		return domain.Handler{}, err
	}
	return e.Handler, nil
}

// Entry returns the registration of name.
func (r *Registry) Entry(name string) (Entry, error) {
	r.mu.RLock()
	e, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	return e, nil
}

// Names lists the registered handler names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// ValidateProps checks props against the schema declared for name.
func (r *Registry) ValidateProps(name string, props map[string]any) error {
	e, err := r.Entry(name)
	if err != nil {
		return err
	}
	return schema.Validate(e.Props, props)
}
