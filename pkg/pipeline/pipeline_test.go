package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Membership(t *testing.T) {
	g := newGraph(t)
	p := pipeline.New()
	assert.Empty(t, p.Steps())

	s1, s2 := g.single(domain.Handler{}, nil, nil), g.single(domain.Handler{}, nil, nil)
	add(t, p, s1, s2)
	assert.Same(t, s1, p.GetStep(s1.ID()))
	assert.Same(t, s2, p.GetStep(s2.ID()))

	p.Remove(s1.ID())
	assert.Nil(t, p.GetStep(s1.ID()))

	assert.ErrorIs(t, p.Add(nil), domain.ErrNilStep)

	clash, err := domain.NewSingle(domain.Options{ID: s2.ID()})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Add(clash), domain.ErrDuplicateStep)
	require.NoError(t, p.Add(s2), "re-adding the same step is allowed")
}

func TestPipeline_StartAndErrorSlots(t *testing.T) {
	g := newGraph(t)
	p := pipeline.New()

	first, second := g.start(), g.start()
	errStep := g.errorStep()
	add(t, p, first, errStep, second)

	assert.Same(t, second, p.StartStep(), "last start step wins")
	assert.Same(t, errStep, p.ErrorStep())

	p.Remove(second.ID())
	assert.Nil(t, p.StartStep())
	p.Remove(errStep.ID())
	assert.Nil(t, p.ErrorStep())
}

func TestExecute_WithoutStartStep(t *testing.T) {
	_, err := pipeline.New().Execute(context.Background(), nil)

	var execErr *domain.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, execErr.Cause, domain.ErrNoStartStep)
}

func TestExecute_StartToEnd(t *testing.T) {
	g := newGraph(t)
	calls := 0
	counting := domain.OnContext(func(data domain.Context, done *domain.Done) {
		calls++
		done.Default()
	})

	start := g.step(domain.NewStart, domain.Options{Handler: counting})
	end := g.step(domain.NewEnd, domain.Options{Handler: counting})
	connect(t, start, end, "", "")

	p := pipeline.New()
	add(t, p, start, end)

	data := domain.Context{"data": "some data"}
	result, err := p.Execute(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, domain.Context{"data": "some data"}, result)
	assert.Equal(t, 0, calls, "start and end handlers are never invoked")

	result, err = p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestExecute_StructuralFailures(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *graph, p *pipeline.Pipeline)
		want  error
	}{
		{
			name: "last step is not an end step",
			build: func(g *graph, p *pipeline.Pipeline) {
				start, step := g.start(), g.single(domain.Handler{}, nil, nil)
				connect(t, start, step, "", "")
				add(t, p, start, step)
			},
			want: domain.ErrNoEndStep,
		},
		{
			name: "connection to unknown step",
			build: func(g *graph, p *pipeline.Pipeline) {
				start := g.start()
				require.NoError(t, start.ConnectToID(domain.IntID(99999), "", ""))
				add(t, p, start)
			},
			want: domain.ErrStepNotFound,
		},
		{
			name: "disabled in port",
			build: func(g *graph, p *pipeline.Pipeline) {
				start, step := g.start(), g.single(domain.Handler{}, []string{"port1"}, nil)
				require.NoError(t, step.EnableInPort("port1", false))
				connect(t, start, step, "", "port1")
				add(t, p, start, step)
			},
			want: domain.ErrInPortDisabled,
		},
		{
			name: "disabled out port",
			build: func(g *graph, p *pipeline.Pipeline) {
				start, step, end := g.start(), g.single(domain.Handler{}, nil, nil), g.end()
				require.NoError(t, step.EnableOutPort(domain.DefaultPort, false))
				connect(t, start, step, "", "")
				connect(t, step, end, "", "")
				add(t, p, start, step, end)
			},
			want: domain.ErrOutPortDisabled,
		},
		{
			name: "unknown in port on id connection",
			build: func(g *graph, p *pipeline.Pipeline) {
				start, end := g.start(), g.end()
				step := g.single(domain.Handler{}, nil, nil)
				require.NoError(t, start.ConnectToID(step.ID(), "", "ghost"))
				connect(t, step, end, "", "")
				add(t, p, start, step, end)
			},
			want: domain.ErrUnknownPort,
		},
		{
			name: "handler selects undeclared out port",
			build: func(g *graph, p *pipeline.Pipeline) {
				start, end := g.start(), g.end()
				step := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
					done.Next("nowhere")
				}), nil, nil)
				connect(t, start, step, "", "")
				connect(t, step, end, "", "")
				add(t, p, start, step, end)
			},
			want: domain.ErrUnknownPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pipeline.New()
			tt.build(newGraph(t), p)

			_, err := p.Execute(context.Background(), nil)
			var execErr *domain.ExecutorError
			require.ErrorAs(t, err, &execErr)
			assert.ErrorIs(t, execErr.Cause, tt.want)
			assert.Nil(t, execErr.Inner)
		})
	}
}

func TestExecute_NoEndStepMessage(t *testing.T) {
	g := newGraph(t)
	start := g.start()
	p := pipeline.New()
	add(t, p, start)

	_, err := p.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "step execution error: no end step: step_id(1), out_port(default)", err.Error())
}

func TestExecute_HandlerConventions(t *testing.T) {
	props := domain.Props{"prop1": 1, "prop2": false}

	tests := []struct {
		name    string
		handler domain.Handler
		want    domain.Context
	}{
		{
			name: "context",
			handler: domain.OnContext(func(data domain.Context, done *domain.Done) {
				data["count"] = data["count"].(int) + 1
				done.Default()
			}),
			want: domain.Context{"count": 2},
		},
		{
			name: "in port",
			handler: domain.OnInPort(func(data domain.Context, inPort string, done *domain.Done) {
				data["count"] = data["count"].(int) + 1
				data["port"] = inPort
				done.Default()
			}),
			want: domain.Context{"count": 2, "port": "default"},
		},
		{
			name: "props",
			handler: domain.OnProps(func(data domain.Context, inPort string, p domain.Props, done *domain.Done) {
				data["count"] = data["count"].(int) + 1
				data["port"] = inPort
				data["props"] = p
				done.Default()
			}),
			want: domain.Context{"count": 2, "port": "default", "props": props},
		},
		{
			name: "error",
			handler: domain.OnError(func(err error, data domain.Context, inPort string, p domain.Props, done *domain.Done) {
				data["count"] = data["count"].(int) + 1
				data["port"] = inPort
				data["err"] = err
				done.Default()
			}),
			want: domain.Context{"count": 2, "port": "default", "err": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			start, end := g.start(), g.end()
			step := g.step(domain.NewSingle, domain.Options{Handler: tt.handler, Props: props})
			connect(t, start, step, "", "")
			connect(t, step, end, "", "")

			p := pipeline.New()
			add(t, p, start, end, step)

			data := domain.Context{"count": 1}
			result, err := p.Execute(context.Background(), data)
			require.NoError(t, err)

			assert.Equal(t, tt.want, result)
		})
	}
}

func TestExecute_Ports(t *testing.T) {
	g := newGraph(t)
	first := g.single(domain.OnInPort(func(data domain.Context, inPort string, done *domain.Done) {
		data["count"] = data["count"].(int) + 1
		data["ports"] = append(data["ports"].([]string), inPort)
		done.Next("p2")
	}), nil, []string{"p1", "p2"})
	second := g.single(domain.OnInPort(func(data domain.Context, inPort string, done *domain.Done) {
		data["count"] = data["count"].(int) + 1
		data["ports"] = append(data["ports"].([]string), inPort)
		done.Default()
	}), []string{"p3", "p4"}, nil)
	start, end := g.start(), g.end()

	connect(t, start, first, "", "")
	connect(t, first, second, "", "p3")
	connect(t, first, second, "p1", "p3")
	connect(t, first, second, "p2", "p3")
	connect(t, second, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, first, second)

	data := domain.Context{"count": 1, "ports": []string{}}
	result, err := p.Execute(context.Background(), data)
	require.NoError(t, err)

	want := domain.Context{"count": 3, "ports": []string{"default", "p3"}}
	assert.Equal(t, want, result)
	assert.Equal(t, want, data, "the caller's context is mutated in place")
}

func TestExecute_SelectedPortWithoutConnectionEndsPath(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	step := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Next("p2")
	}), nil, []string{"p1", "p2"})
	connect(t, start, step, "", "")
	connect(t, step, end, "p1", "")

	p := pipeline.New()
	add(t, p, start, end, step)

	_, err := p.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoEndStep)
}

func TestExecute_ScenarioSelectsP2(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	step := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Next("p2")
	}), nil, []string{"p1", "p2"})
	connect(t, start, step, "", "")
	connect(t, step, end, "p2", "")

	p := pipeline.New()
	add(t, p, start, end, step)
	events := record(p)

	result, err := p.Execute(context.Background(), domain.Context{"count": 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Context{"count": 1}, result)
	assert.Equal(t, []string{
		"begin:" + string(start.ID()), "end:" + string(start.ID()),
		"begin:" + string(step.ID()), "end:" + string(step.ID()),
		"begin:" + string(end.ID()), "end:" + string(end.ID()),
	}, events.sequence())
}

func TestExecute_HandlerErrorWithoutErrorStep(t *testing.T) {
	tests := []struct {
		name    string
		handler domain.Handler
	}{
		{"panic", domain.OnContext(func(data domain.Context, done *domain.Done) {
			panic(errors.New("handler error"))
		})},
		{"done fail", domain.OnContext(func(data domain.Context, done *domain.Done) {
			done.Fail(errors.New("handler error"))
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			start, end := g.start(), g.end()
			step := g.single(tt.handler, nil, nil)
			connect(t, start, step, "", "")
			connect(t, step, end, "", "")

			p := pipeline.New()
			add(t, p, start, end, step)

			_, err := p.Execute(context.Background(), nil)
			var execErr *domain.ExecutorError
			require.ErrorAs(t, err, &execErr)
			assert.Contains(t, execErr.Cause.Error(), "handler error")
			if tt.name == "done fail" {
				assert.Equal(t, "handler error", execErr.Cause.Error())
			}
		})
	}
}

func TestExecute_PipelineErrorStep(t *testing.T) {
	g := newGraph(t)
	cause := errors.New("handler error")
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(cause)
	}), nil, nil)
	logStep := g.single(domain.OnError(func(err error, data domain.Context, inPort string, _ domain.Props, done *domain.Done) {
		data["count"] = data["count"].(int) + 1
		data["err"] = err
		data["port"] = inPort
		done.Default()
	}), nil, nil)
	start, end, errStep, end2 := g.start(), g.end(), g.errorStep(), g.end()

	connect(t, start, failing, "", "")
	connect(t, failing, end, "", "")
	connect(t, errStep, logStep, "", "")
	connect(t, logStep, end2, "", "")

	p := pipeline.New()
	add(t, p, start, end, failing)
	add(t, p, errStep, logStep, end2)

	result, err := p.Execute(context.Background(), domain.Context{"count": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])
	assert.Equal(t, "default", result["port"])
	assert.Same(t, cause, result["err"])
}

func TestExecute_ErrorStepHandlerIsNotInvoked(t *testing.T) {
	g := newGraph(t)
	invoked := false
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(errors.New("some error"))
	}), nil, nil)
	errStep := g.step(domain.NewError, domain.Options{Handler: domain.OnContext(func(data domain.Context, done *domain.Done) {
		invoked = true
	})})
	start, end, end2 := g.start(), g.end(), g.end()
	connect(t, start, failing, "", "")
	connect(t, failing, end, "", "")
	connect(t, errStep, end2, "", "")

	p := pipeline.New()
	add(t, p, start, end, failing, errStep, end2)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, invoked)
}

func TestExecute_FailureInsideErrorStep(t *testing.T) {
	g := newGraph(t)
	failing := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		panic("handler error")
	}), nil, nil)
	logStep := g.single(domain.OnProps(func(data domain.Context, inPort string, _ domain.Props, done *domain.Done) {
		done.Fail(errors.New("throw error step"))
	}), nil, nil)
	start, end, errStep, end2 := g.start(), g.end(), g.errorStep(), g.end()
	connect(t, start, failing, "", "")
	connect(t, failing, end, "", "")
	connect(t, errStep, logStep, "", "")
	connect(t, logStep, end2, "", "")

	p := pipeline.New()
	add(t, p, start, end, failing, errStep, logStep, end2)

	_, err := p.Execute(context.Background(), nil)
	var execErr *domain.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, execErr.Cause, domain.ErrHandlerPanic)
	require.Error(t, execErr.Inner)
	assert.Equal(t, "throw error step", execErr.Inner.Error())
}

func TestExecute_MissingStartGoesToErrorStep(t *testing.T) {
	g := newGraph(t)
	errStep, end := g.errorStep(), g.end()
	var seen error
	logStep := g.single(domain.OnError(func(err error, data domain.Context, _ string, _ domain.Props, done *domain.Done) {
		seen = err
		done.Default()
	}), nil, nil)
	connect(t, errStep, logStep, "", "")
	connect(t, logStep, end, "", "")

	p := pipeline.New()
	add(t, p, errStep, logStep, end)

	_, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, seen, domain.ErrNoStartStep)
}

func TestExecute_RedirectToErrorPort(t *testing.T) {
	g := newGraph(t)
	first := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		data["count"] = data["count"].(int) + 1
		panic(errors.New("handler error"))
	}), nil, []string{"port1", "error"})
	second := g.single(domain.OnError(func(err error, data domain.Context, inPort string, _ domain.Props, done *domain.Done) {
		data["count"] = data["count"].(int) + 1
		data["port"] = inPort
		data["err"] = err
		done.Default()
	}), []string{"port3"}, nil)
	start, end := g.start(), g.end()

	connect(t, start, first, "", "")
	connect(t, first, second, "error", "port3")
	connect(t, second, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, first, second)

	result, err := p.Execute(context.Background(), domain.Context{"count": 1})
	require.NoError(t, err)
	assert.Equal(t, 3, result["count"])
	assert.Equal(t, "port3", result["port"])
	assert.EqualError(t, result["err"].(error), "handler panic: handler error")
}

func TestExecute_ErrorPortDeclaredButUnconnected(t *testing.T) {
	g := newGraph(t)
	step := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(errors.New("boom"))
	}), nil, []string{"error"})
	start, end := g.start(), g.end()
	connect(t, start, step, "", "")
	connect(t, step, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, step)

	_, err := p.Execute(context.Background(), nil)
	var execErr *domain.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.EqualError(t, execErr.Cause, "boom")
}

func TestExecute_Composite(t *testing.T) {
	g := newGraph(t)
	compositeCalls := 0
	composite, err := domain.NewComposite(domain.Options{
		IDs: g.ids,
		Handler: domain.OnContext(func(data domain.Context, done *domain.Done) {
			compositeCalls++
			done.Default()
		}),
	})
	require.NoError(t, err)

	visit := func(next string) domain.Handler {
		return domain.OnInPort(func(data domain.Context, inPort string, done *domain.Done) {
			data["count"] = data["count"].(int) + 1
			data["ports"] = append(data["ports"].([]string), inPort)
			done.Next(next)
		})
	}
	inner1 := g.single(visit("p2"), []string{"p1"}, []string{"p2"})
	inner2 := g.single(visit("p4"), []string{"p3"}, []string{"p4"})
	connect(t, inner1, inner2, "p2", "p3")
	require.NoError(t, composite.SetStartStep(inner1))
	require.NoError(t, composite.SetEndStep(inner2))

	after := g.single(visit("p6"), []string{"p5"}, []string{"p6"})
	start, end := g.start(), g.end()
	connect(t, start, composite.Step, "", "p1")
	connect(t, composite.Step, after, "p4", "p5")
	connect(t, after, end, "p6", "")

	p := pipeline.New()
	add(t, p, start, end, composite.Step, after)

	result, err := p.Execute(context.Background(), domain.Context{"count": 1, "ports": []string{}})
	require.NoError(t, err)
	assert.Equal(t, 0, compositeCalls, "a composite's own handler is never invoked")
	assert.Equal(t, 4, result["count"])
	assert.Equal(t, []string{"p1", "p3", "p5"}, result["ports"])
}

func TestExecute_CompositeMustFinishOnItsEndStep(t *testing.T) {
	g := newGraph(t)
	calls := 0
	composite := g.composite()
	first := g.single(domain.OnInPort(func(data domain.Context, inPort string, done *domain.Done) {
		calls++
		done.Default()
	}), nil, nil)
	last := g.single(domain.Handler{}, nil, nil)
	require.NoError(t, composite.SetStartStep(first))
	require.NoError(t, composite.SetEndStep(last))

	start, end := g.start(), g.end()
	connect(t, start, composite.Step, "", "")
	connect(t, composite.Step, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, composite.Step)

	_, err := p.Execute(context.Background(), nil)
	var execErr *domain.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, execErr.Cause, domain.ErrCompositeWrongEnd)
	assert.Equal(t, 1, calls)
}

func TestExecute_CompositeWithoutBoundaries(t *testing.T) {
	g := newGraph(t)
	composite := g.composite()
	start, end := g.start(), g.end()
	connect(t, start, composite.Step, "", "")
	connect(t, composite.Step, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, composite.Step)

	_, err := p.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrCompositeNoStart)
}

func TestExecute_CompositeFailureRoutesThroughItsErrorPort(t *testing.T) {
	g := newGraph(t)
	composite := g.composite()
	inner := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		done.Fail(errors.New("inner failure"))
	}), nil, nil)
	require.NoError(t, composite.SetStartStep(inner))
	require.NoError(t, composite.SetEndStep(inner))
	require.NoError(t, composite.AddOutPorts(domain.ErrorPort))

	recovered := g.single(domain.OnError(func(err error, data domain.Context, _ string, _ domain.Props, done *domain.Done) {
		data["recovered"] = err.Error()
		done.Default()
	}), nil, nil)
	start, end := g.start(), g.end()
	connect(t, start, composite.Step, "", "")
	connect(t, composite.Step, end, "", "")
	connect(t, composite.Step, recovered, domain.ErrorPort, "")
	connect(t, recovered, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, composite.Step, recovered)

	result, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "inner failure", result["recovered"])
}

func TestExecute_Concurrent(t *testing.T) {
	g := newGraph(t)
	start, end := g.start(), g.end()
	step := g.single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		data["n"] = data["n"].(int) * 2
		done.Default()
	}), nil, nil)
	connect(t, start, step, "", "")
	connect(t, step, end, "", "")

	p := pipeline.New()
	add(t, p, start, end, step)

	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := p.Execute(context.Background(), domain.Context{"n": i})
			if err != nil {
				t.Errorf("execution %d failed: %v", i, err)
				return
			}
			results[i] = out["n"].(int)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != i*2 {
			t.Errorf("execution %d: expected %d, got %d", i, i*2, got)
		}
	}
}
