// Package schema validates rule descriptions and step props.
//
// Validation runs in three layers:
//
//   - ValidateDocument checks the shape of a decoded description against the
//     JSON schema reflected from definition.Definition (see Generate).
//   - Check applies the semantic rules a schema cannot express: unique ids
//     per scope, connections to known steps and declared ports, composite
//     boundaries.
//   - Validate checks the props of a step against the Schema its handler
//     declares.
//
// A props Schema maps field names to types:
//
//	s := schema.Schema{
//	    "message": schema.Optional(schema.String()),
//	    "routes":  schema.Slice(schema.Map()),
//	}
//
//	if err := schema.Validate(s, props); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // ...
//	    }
//	}
//
// Every layer reports through *ValidationError values, several failures are
// collected into an *AggregateError.
package schema
