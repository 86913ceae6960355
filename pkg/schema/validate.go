package schema

import (
	"maps"
	"slices"
)

// Schema maps prop names to their expected types.
// Example: {"message": Optional(String()), "routes": Slice(Map())}
type Schema map[string]Type

// Describe lists the fields as "name: type", sorted by name.
func (s Schema) Describe() []string {
	out := make([]string, 0, len(s))
	for _, key := range slices.Sorted(maps.Keys(s)) {
		out = append(out, key+": "+s[key].Name())
	}
	return out
}

// Validate checks data against the schema and reports every failure, in
// field name order. Fields not in the schema are ignored. An empty schema
// accepts everything.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for _, fieldName := range slices.Sorted(maps.Keys(schema)) {
		fieldType := schema[fieldName]

		value, exists := data[fieldName]
		if !exists {
			if _, optional := fieldType.(*OptionalType); optional {
				continue
			}
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "required",
			})
			continue
		}

		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}
	return aggregate(errs)
}
