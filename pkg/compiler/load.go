package compiler

import (
	"fmt"
	"os"

	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
	"github.com/aretw0/ruleflow/pkg/schema"
)

// Rule is a validated description together with its compiled pipeline.
type Rule struct {
	Definition *definition.Definition
	Pipeline   *pipeline.Pipeline
}

// ID is the rule id: the description name.
func (r *Rule) ID() string { return r.Definition.Name }

// Validate decodes data and runs every check short of compiling it: the
// document shape against the JSON schema, then the semantic rules.
func Validate(data []byte, format definition.Format) (*definition.Definition, error) {
	tree, err := definition.Decode(data, format)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateDocument(tree); err != nil {
		return nil, fmt.Errorf("invalid description: %w", err)
	}
	def, err := definition.FromTree(tree)
	if err != nil {
		return nil, err
	}
	if err := schema.Check(def); err != nil {
		return nil, fmt.Errorf("invalid description: %w", err)
	}
	return def, nil
}

// Load validates data and compiles it against reg.
func Load(data []byte, format definition.Format, reg *registry.Registry, opts ...pipeline.Option) (*Rule, error) {
	def, err := Validate(data, format)
	if err != nil {
		return nil, err
	}
	return build(def, reg, opts)
}

// LoadFile is Load for the description at path. A description without a
// name is named after the file.
func LoadFile(path string, reg *registry.Registry, opts ...pipeline.Option) (*Rule, error) {
	def, err := ValidateFile(path)
	if err != nil {
		return nil, err
	}
	rule, err := build(def, reg, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rule, nil
}

// ValidateFile is Validate for the description at path.
func ValidateFile(path string) (*definition.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}
	def, err := Validate(data, definition.FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = definition.Stem(path)
	}
	return def, nil
}

func build(def *definition.Definition, reg *registry.Registry, opts []pipeline.Option) (*Rule, error) {
	p, err := Compile(def, reg, opts...)
	if err != nil {
		return nil, err
	}
	return &Rule{Definition: def, Pipeline: p}, nil
}
