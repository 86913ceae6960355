package pipeline

import (
	"context"

	"github.com/aretw0/ruleflow/pkg/domain"
)

// ExecutionListener observes the lifecycle of every execution of a Pipeline.
//
// ExecuteStart receives the fresh Executor before traversal starts, which is
// the moment to subscribe a StepListener to it. ExecuteEnd is always called,
// after ExecuteError when the execution failed.
type ExecutionListener interface {
	ExecuteStart(ctx context.Context, ex *Executor)
	ExecuteEnd(ctx context.Context, ex *Executor)
	ExecuteError(ctx context.Context, ex *Executor, err error)
}

// StepListener observes the steps visited by one Executor, in visit order.
// StepEnd of a step always precedes StepBegin of its successor.
type StepListener interface {
	StepBegin(ctx context.Context, step *domain.Step, inPort string)
	StepEnd(ctx context.Context, step *domain.Step, outPort string)
	StepError(ctx context.Context, step *domain.Step, err error)
}

// ExecutionHooks adapts optional functions to ExecutionListener.
// Register it by pointer so that it can be removed again.
type ExecutionHooks struct {
	OnExecuteStart func(context.Context, *Executor)
	OnExecuteEnd   func(context.Context, *Executor)
	OnExecuteError func(context.Context, *Executor, error)
}

func (h *ExecutionHooks) ExecuteStart(ctx context.Context, ex *Executor) {
	if h.OnExecuteStart != nil {
		h.OnExecuteStart(ctx, ex)
	}
}

func (h *ExecutionHooks) ExecuteEnd(ctx context.Context, ex *Executor) {
	if h.OnExecuteEnd != nil {
		h.OnExecuteEnd(ctx, ex)
	}
}

func (h *ExecutionHooks) ExecuteError(ctx context.Context, ex *Executor, err error) {
	if h.OnExecuteError != nil {
		h.OnExecuteError(ctx, ex, err)
	}
}

// StepHooks adapts optional functions to StepListener.
// Register it by pointer so that it can be removed again.
type StepHooks struct {
	OnStepBegin func(context.Context, *domain.Step, string)
	OnStepEnd   func(context.Context, *domain.Step, string)
	OnStepError func(context.Context, *domain.Step, error)
}

func (h *StepHooks) StepBegin(ctx context.Context, step *domain.Step, inPort string) {
	if h.OnStepBegin != nil {
		h.OnStepBegin(ctx, step, inPort)
	}
}

func (h *StepHooks) StepEnd(ctx context.Context, step *domain.Step, outPort string) {
	if h.OnStepEnd != nil {
		h.OnStepEnd(ctx, step, outPort)
	}
}

func (h *StepHooks) StepError(ctx context.Context, step *domain.Step, err error) {
	if h.OnStepError != nil {
		h.OnStepError(ctx, step, err)
	}
}

// listeners is a copy-on-write subscriber list. Listeners are compared by
// interface equality on removal, so they must be comparable (pointers).
type listeners[L comparable] struct {
	items []L
}

func (l *listeners[L]) add(item L) {
	next := make([]L, 0, len(l.items)+1)
	next = append(next, l.items...)
	l.items = append(next, item)
}

func (l *listeners[L]) remove(item L) {
	next := make([]L, 0, len(l.items))
	for _, existing := range l.items {
		if existing != item {
			next = append(next, existing)
		}
	}
	l.items = next
}

func (l *listeners[L]) snapshot() []L {
	return l.items
}
