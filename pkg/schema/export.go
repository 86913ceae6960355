package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/invopop/jsonschema"
)

// SchemaID is the $id of the description schema.
const SchemaID = "https://github.com/aretw0/ruleflow/schemas/rule.json"

// Generate produces a JSON Schema Draft 2020-12 document from the
// definition.Definition struct.
func Generate() ([]byte, error) {
	data, err := json.MarshalIndent(reflectSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

func reflectSchema() *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false
	r.Mapper = mapStepID

	s := r.Reflect(&definition.Definition{})
	s.ID = SchemaID
	s.Title = "ruleflow rule"
	s.Description = "Schema for ruleflow rule descriptions (Draft 2020-12)"
	return s
}

var stepIDType = reflect.TypeOf(domain.StepID(""))

// mapStepID lets ids be written as strings or integers.
func mapStepID(t reflect.Type) *jsonschema.Schema {
	if t != stepIDType {
		return nil
	}
	minLength := uint64(1)
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", MinLength: &minLength},
			{Type: "integer"},
		},
	}
}
