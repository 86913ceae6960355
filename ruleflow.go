package ruleflow

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
)

type config struct {
	registry     *registry.Registry
	handlers     map[string]domain.Handler
	logger       *slog.Logger
	pipelineOpts []pipeline.Option
}

// Option defines a functional option for Load, LoadFile and Parse.
type Option func(*config)

// WithRegistry resolves handler names against reg instead of a fresh
// registry holding the built-in handlers.
func WithRegistry(reg *registry.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithHandler registers h under name before the description is compiled.
// It is registered on the registry given by WithRegistry, when set.
func WithHandler(name string, h domain.Handler) Option {
	return func(c *config) {
		if c.handlers == nil {
			c.handlers = make(map[string]domain.Handler)
		}
		c.handlers[name] = h
	}
}

// WithLogger sets the structured logger of the pipeline and of the
// built-in "log" handler.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithPipelineOptions are passed through to pipeline.New.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, opts...)
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		var regOpts []registry.Option
		if c.logger != nil {
			regOpts = append(regOpts, registry.WithLogger(c.logger))
		}
		c.registry = registry.NewWithBuiltins(regOpts...)
	}
	for name, h := range c.handlers {
		c.registry.Register(name, h)
	}
	if c.logger != nil {
		c.pipelineOpts = append(c.pipelineOpts, pipeline.WithLogger(c.logger))
	}
	return c
}

// Parse validates and compiles a description held in memory.
func Parse(data []byte, format definition.Format, opts ...Option) (*pipeline.Pipeline, error) {
	c := newConfig(opts)
	rule, err := compiler.Load(data, format, c.registry, c.pipelineOpts...)
	if err != nil {
		return nil, err
	}
	return rule.Pipeline, nil
}

// Load reads a description from r and compiles it.
func Load(r io.Reader, format definition.Format, opts ...Option) (*pipeline.Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}
	return Parse(data, format, opts...)
}

// LoadFile compiles the description at path. The format follows the file
// extension and a description without a name is named after the file.
func LoadFile(path string, opts ...Option) (*pipeline.Pipeline, error) {
	c := newConfig(opts)
	rule, err := compiler.LoadFile(path, c.registry, c.pipelineOpts...)
	if err != nil {
		return nil, err
	}
	return rule.Pipeline, nil
}
