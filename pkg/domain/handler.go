package domain

import (
	"fmt"
	"sync"
)

// Context is the caller-owned value threaded through every handler of one
// execution. Handlers mutate it in place.
type Context map[string]any

// Props is the static property bag of a step. Handlers receive a copy.
type Props map[string]any

// Handler signatures. Every handler resolves its step through done.
type (
	// ContextFunc receives the execution context only.
	ContextFunc func(data Context, done *Done)

	// InPortFunc also receives the in-port the step was entered on.
	InPortFunc func(data Context, inPort string, done *Done)

	// PropsFunc also receives the static props of the step.
	PropsFunc func(data Context, inPort string, props Props, done *Done)

	// ErrorFunc also receives the in-flight error, nil when there is none.
	ErrorFunc func(err error, data Context, inPort string, props Props, done *Done)
)

// Handler is a step behavior bound to one of the four call conventions.
// The zero Handler is a pass-through that resolves to the default out-port.
type Handler struct {
	onContext ContextFunc
	onInPort  InPortFunc
	onProps   PropsFunc
	onError   ErrorFunc
}

// OnContext binds fn as a (context, done) handler.
func OnContext(fn ContextFunc) Handler {
	return Handler{onContext: fn}
}

// OnInPort binds fn as a (context, inPort, done) handler.
func OnInPort(fn InPortFunc) Handler {
	return Handler{onInPort: fn}
}

// OnProps binds fn as a (context, inPort, props, done) handler.
func OnProps(fn PropsFunc) Handler {
	return Handler{onProps: fn}
}

// OnError binds fn as an (err, context, inPort, props, done) handler.
func OnError(fn ErrorFunc) Handler {
	return Handler{onError: fn}
}

// IsZero reports whether no function is bound.
func (h Handler) IsZero() bool {
	return h.onContext == nil && h.onInPort == nil && h.onProps == nil && h.onError == nil
}

// Call invokes the bound function and blocks until it resolves done.
//
// It returns the selected out-port, or "" when the handler resolved to the
// default port or no function is bound. A panic inside the function is
// recovered and reported as a failure unless done was already resolved.
// A handler that never resolves done blocks Call forever.
func (h Handler) Call(inflight error, data Context, inPort string, props Props) (string, error) {
	if h.IsZero() {
		return "", nil
	}

	done := newDone()
	func() {
		defer func() {
			if r := recover(); r != nil {
				done.Fail(panicError(r))
			}
		}()
		switch {
		case h.onContext != nil:
			h.onContext(data, done)
		case h.onInPort != nil:
			h.onInPort(data, inPort, done)
		case h.onProps != nil:
			h.onProps(data, inPort, props, done)
		default:
			h.onError(inflight, data, inPort, props, done)
		}
	}()

	return done.wait()
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrHandlerPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrHandlerPanic, r)
}

// Done is the one-shot completion signal of a handler invocation.
// Only the first call to Next, Default or Fail has effect. It may be called
// from any goroutine.
type Done struct {
	once sync.Once
	ch   chan outcome
}

type outcome struct {
	port string
	err  error
}

func newDone() *Done {
	return &Done{ch: make(chan outcome, 1)}
}

// Next continues on the given out-port. An empty port means "default".
func (d *Done) Next(port string) {
	d.resolve(outcome{port: port})
}

// Default continues on the default out-port.
func (d *Done) Default() {
	d.resolve(outcome{})
}

// Fail fails the step with err. A nil err behaves like Default.
func (d *Done) Fail(err error) {
	d.resolve(outcome{err: err})
}

func (d *Done) resolve(o outcome) {
	d.once.Do(func() {
		d.ch <- o
	})
}

func (d *Done) wait() (string, error) {
	o := <-d.ch
	if o.err != nil {
		return "", o.err
	}
	return o.port, nil
}
