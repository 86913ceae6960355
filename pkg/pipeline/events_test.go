package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_ExecutionLifecycle(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	connect(t, start, end, "", "")

	p := pipeline.New()
	add(t, p, start, end)

	var got []string
	hooks := &pipeline.ExecutionHooks{
		OnExecuteStart: func(context.Context, *pipeline.Executor) { got = append(got, "start") },
		OnExecuteEnd:   func(context.Context, *pipeline.Executor) { got = append(got, "end") },
		OnExecuteError: func(context.Context, *pipeline.Executor, error) { got = append(got, "error") },
	}
	p.AddListener(hooks)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "end"}, got)

	p.RemoveListener(hooks)
	_, err = p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2, "removed listeners receive nothing")
}

func TestEvents_ExecuteErrorBeforeEnd(t *testing.T) {
	var got []string
	var seen error
	p := pipeline.New(pipeline.WithListener(&pipeline.ExecutionHooks{
		OnExecuteEnd: func(context.Context, *pipeline.Executor) { got = append(got, "end") },
		OnExecuteError: func(_ context.Context, _ *pipeline.Executor, err error) {
			got = append(got, "error")
			seen = err
		},
	}))

	_, err := p.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"error", "end"}, got)
	assert.Same(t, err, seen)
}

func TestEvents_ExecutorIsFreshPerExecution(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	connect(t, start, end, "", "")

	p := pipeline.New()
	add(t, p, start, end)

	var executors []*pipeline.Executor
	p.AddListener(&pipeline.ExecutionHooks{
		OnExecuteStart: func(_ context.Context, ex *pipeline.Executor) {
			executors = append(executors, ex)
			assert.Same(t, start, ex.StartStep())
			assert.Nil(t, ex.ErrorStep())
			assert.Len(t, ex.Steps(), 2)
		},
	})

	for range 2 {
		_, err := p.Execute(context.Background(), nil)
		require.NoError(t, err)
	}
	require.Len(t, executors, 2)
	assert.NotSame(t, executors[0], executors[1])
}

func TestEvents_StartToEnd(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	connect(t, start, end, "", "")

	p := pipeline.New()
	add(t, p, start, end)
	events := record(p)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	begins, ends := events.of("begin"), events.of("end")
	require.Len(t, begins, 2)
	require.Len(t, ends, 2)
	assert.Same(t, start, begins[0].step)
	assert.Equal(t, domain.DefaultPort, begins[0].port)
	assert.Same(t, end, begins[1].step)
	assert.Equal(t, domain.DefaultPort, ends[0].port)
	assert.Empty(t, events.of("error"))
}

func TestEvents_Composite(t *testing.T) {
	g := newGraph(t)
	composite := g.composite()
	inner := g.single(domain.Handler{}, nil, nil)
	require.NoError(t, composite.SetStartStep(inner))
	require.NoError(t, composite.SetEndStep(inner))

	start, end := g.start(), g.end()
	connect(t, start, composite.Step, "", "")
	connect(t, composite.Step, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, composite.Step)
	events := record(p)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin:" + string(start.ID()), "end:" + string(start.ID()),
		"begin:" + string(composite.ID()),
		"begin:" + string(inner.ID()), "end:" + string(inner.ID()),
		"end:" + string(composite.ID()),
		"begin:" + string(end.ID()), "end:" + string(end.ID()),
	}, events.sequence())

	ends := events.of("end")
	assert.Same(t, composite.Step, ends[2].step)
	assert.Equal(t, domain.DefaultPort, ends[2].port)
}

func TestEvents_ErrorPortRouting(t *testing.T) {
	g := newGraph(t)
	cause := errors.New("handler error")
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(cause)
	}), nil, []string{domain.ErrorPort})
	start, end := g.start(), g.end()
	connect(t, start, failing, "", "")
	connect(t, failing, end, domain.ErrorPort, "")

	p := pipeline.New()
	add(t, p, start, end, failing)
	events := record(p)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	errs := events.of("error")
	require.Len(t, errs, 1)
	assert.Same(t, failing, errs[0].step)
	assert.Same(t, cause, errs[0].err)

	ends := events.of("end")
	require.Len(t, ends, 3)
	assert.Same(t, failing, ends[1].step)
	assert.Equal(t, domain.ErrorPort, ends[1].port)
}

func TestEvents_UnroutedFailureEndsWithoutPort(t *testing.T) {
	g := newGraph(t)
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(errors.New("boom"))
	}), nil, nil)
	start, end := g.start(), g.end()
	connect(t, start, failing, "", "")
	connect(t, failing, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, failing)
	events := record(p)

	_, err := p.Execute(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, []string{
		"begin:" + string(start.ID()), "end:" + string(start.ID()),
		"begin:" + string(failing.ID()), "error:" + string(failing.ID()), "end:" + string(failing.ID()),
	}, events.sequence())
	assert.Empty(t, events.of("end")[1].port)
}

func TestEvents_ErrorStepWalk(t *testing.T) {
	g := newGraph(t)
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(errors.New("boom"))
	}), nil, nil)
	start, end, errStep, end2 := g.start(), g.end(), g.errorStep(), g.end()
	connect(t, start, failing, "", "")
	connect(t, failing, end, "", "")
	connect(t, errStep, end2, "", "")

	p := pipeline.New()
	add(t, p, start, end, failing, errStep, end2)
	events := record(p)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	begins := events.of("begin")
	require.Len(t, begins, 4)
	assert.Same(t, errStep, begins[2].step)
	assert.Same(t, end2, begins[3].step)
}

func TestEvents_StepListenerRemoval(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	connect(t, start, end, "", "")

	p := pipeline.New()
	add(t, p, start, end)

	begins := 0
	hooks := &pipeline.StepHooks{
		OnStepBegin: func(context.Context, *domain.Step, string) { begins++ },
	}
	p.AddListener(&pipeline.ExecutionHooks{
		OnExecuteStart: func(_ context.Context, ex *pipeline.Executor) {
			ex.AddListener(hooks)
			ex.RemoveListener(hooks)
		},
	})

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, begins)
}
