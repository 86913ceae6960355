package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var compiled = sync.OnceValues(compileSchema)

func compileSchema() (*sjsonschema.Schema, error) {
	data, err := Generate()
	if err != nil {
		return nil, err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// ValidateDocument checks the shape of a decoded description (as returned by
// definition.Decode) against the description schema. Every leaf failure is
// reported as a *ValidationError keyed by its location, e.g. "/steps/0/type".
func ValidateDocument(tree map[string]any) error {
	sch, err := compiled()
	if err != nil {
		return err
	}

	// Round-trip through JSON so YAML scalars take their JSON form.
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}

	var ve *sjsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}

	printer := message.NewPrinter(language.English)
	var errs []error
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, &ValidationError{
			Key:    "/" + strings.Join(cause.InstanceLocation, "/"),
			Reason: cause.ErrorKind.LocalizedString(printer),
		})
	}
	return aggregate(errs)
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
