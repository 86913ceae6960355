package compiler_test

import (
	"context"
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderYAML = `
name: approve-order
description: Routes big orders to review.
steps:
  - id: 1
    type: start
    connect: [{stepId: 10, dstInPort: order}]
  - id: 10
    type: composite
    name: classify
    startId: 11
    endId: 12
    ports: {out: [error]}
    connect:
      - {stepId: 2, srcOutPort: review}
      - {stepId: 3, srcOutPort: approve}
      - {stepId: 4, srcOutPort: error}
    steps:
      - id: 11
        type: single
        handler: set
        ports: {in: [order]}
        props:
          total: "=ctx.price * ctx.quantity"
          limit: 100
        connect: [{stepId: 12}]
      - id: 12
        type: single
        handler: route
        ports: {out: [review, approve]}
        props:
          routes:
            - {when: "ctx.total > ctx.limit", port: review}
          otherwise: approve
  - id: 2
    type: single
    handler: set
    props: {status: review}
    connect: [{stepId: 5}]
  - id: 3
    type: single
    handler: set
    props: {status: approved}
    connect: [{stepId: 5}]
  - id: 4
    type: single
    handler: set
    props: {status: broken}
    connect: [{stepId: 5}]
  - id: 5
    type: end
`

func parse(t *testing.T, doc string) *definition.Definition {
	t.Helper()
	def, err := definition.Parse([]byte(doc), definition.FormatYAML)
	require.NoError(t, err)
	return def
}

func TestCompile_Execute(t *testing.T) {
	p, err := compiler.Compile(parse(t, orderYAML), registry.NewWithBuiltins())
	require.NoError(t, err)
	assert.Equal(t, "approve-order", p.Name())
	assert.Len(t, p.Steps(), 6)
	require.NotNil(t, p.StartStep())
	assert.Equal(t, domain.StepID("1"), p.StartStep().ID())

	tests := []struct {
		name string
		data domain.Context
		want string
	}{
		{"big order", domain.Context{"price": 60, "quantity": 2}, "review"},
		{"small order", domain.Context{"price": 10, "quantity": 2}, "approved"},
		{"bad input goes through the composite error port", domain.Context{"price": "x", "quantity": 2}, "broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Execute(context.Background(), tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result["status"])
		})
	}
}

func TestCompile_CompositeShape(t *testing.T) {
	p, err := compiler.Compile(parse(t, orderYAML), nil)
	require.NoError(t, err)

	composite, ok := domain.AsComposite(p.GetStep("10"))
	require.True(t, ok)
	assert.Equal(t, "classify", composite.Name())
	assert.Equal(t, domain.StepID("11"), composite.StartStep().ID())
	assert.Equal(t, domain.StepID("12"), composite.EndStep().ID())
	assert.Len(t, composite.Steps(), 2)
	assert.True(t, composite.HasInPort("order"))
	assert.True(t, composite.HasOutPort("review"))
	assert.True(t, composite.HasOutPort(domain.ErrorPort), "ports declared on the composite are kept")
	assert.Nil(t, p.GetStep("11"), "children stay private to the composite")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		target  error
		message string
	}{
		{
			name:    "duplicate id",
			doc:     "steps: [{id: 1, type: start}, {id: 1, type: end}]",
			target:  domain.ErrDuplicateStep,
			message: "duplicate step identifier: 1",
		},
		{
			name:   "unknown handler",
			doc:    "steps: [{id: 1, type: single, handler: teleport}]",
			target: registry.ErrHandlerNotFound,
		},
		{
			name:   "unknown target",
			doc:    "steps: [{id: 1, type: start, connect: [{stepId: 2}]}]",
			target: domain.ErrStepNotFound,
		},
		{
			name:   "undeclared in port",
			doc:    "steps: [{id: 1, type: start, connect: [{stepId: 2, dstInPort: x}]}, {id: 2, type: end}]",
			target: domain.ErrUnknownPort,
		},
		{
			name:   "composite start outside sub-graph",
			doc:    "steps: [{id: 1, type: composite, startId: 9, endId: 2, steps: [{id: 2, type: single}]}]",
			target: domain.ErrStepNotFound,
		},
		{
			name:   "unknown type",
			doc:    "steps: [{id: 1, type: middle}]",
			target: domain.ErrInvalidStepType,
		},
		{
			name:    "invalid props",
			doc:     "steps: [{id: 1, type: single, handler: log, props: {message: 3}}]",
			message: "invalid props for log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(parse(t, tt.doc), registry.NewWithBuiltins())
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	src, err := compiler.Generate(parse(t, orderYAML), compiler.GenerateOptions{Package: "orders"})
	require.NoError(t, err)

	file, err := parser.ParseFile(token.NewFileSet(), "rule.go", src, parser.ParseComments)
	require.NoError(t, err, string(src))
	assert.Equal(t, "orders", file.Name.Name)

	code := string(src)
	assert.True(t, strings.HasPrefix(code, "// Code generated by ruleflow gen. DO NOT EDIT."))
	assert.Contains(t, code, "func NewApproveOrder(reg *registry.Registry, opts ...pipeline.Option) (*pipeline.Pipeline, error)")
	assert.Contains(t, code, "// Routes big orders to review.")
	assert.Contains(t, code, `reg.Entry("route")`)
	assert.Contains(t, code, `"total": "=ctx.price * ctx.quantity"`)
	assert.Contains(t, code, `c2, err := domain.NewComposite(`)
	assert.Contains(t, code, `c2.SetStartStep(s7)`)
	assert.Contains(t, code, `c2.AddOutPorts([]string{"error"}...)`)
	assert.Contains(t, code, `s1.ConnectTo(c2.Step, "default", "order")`)
	assert.Contains(t, code, `p.Add(s1, c2.Step, s3, s4, s5, s6)`)

	// Boundaries are set before any connection is made.
	assert.Less(t, strings.Index(code, "SetStartStep"), strings.Index(code, "ConnectTo"))
}

func TestGenerate_FuncName(t *testing.T) {
	def := parse(t, "name: 2fa check\nsteps: [{id: 1, type: start}]")

	src, err := compiler.Generate(def, compiler.GenerateOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(src), "package rules")
	assert.Contains(t, string(src), "func NewRule2faCheck(")

	src, err = compiler.Generate(def, compiler.GenerateOptions{Func: "Build"})
	require.NoError(t, err)
	assert.Contains(t, string(src), "func Build(")
}

func TestGenerate_Errors(t *testing.T) {
	_, err := compiler.Generate(parse(t, "steps: [{id: 1, type: start}, {id: 1, type: end}]"), compiler.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrDuplicateStep)

	_, err = compiler.Generate(nil, compiler.GenerateOptions{})
	assert.Error(t, err)
}
