// Package validation checks personal-data records against the JSON Schema a
// room owner attaches to a room.
//
// Schemas are compiled with github.com/santhosh-tekuri/jsonschema/v5 as
// draft 2020-12. Failures are flattened into FieldErrors whose Field is the
// dotted path of the offending value:
//
//	s, err := validation.Compile(room.Schema)
//	if err != nil {
//	    return err
//	}
//	if res := s.Validate(record); !res.Valid {
//	    for _, fe := range res.Errors {
//	        fmt.Println(fe.Field, fe.Message)
//	    }
//	}
//
// InferSchema goes the other way and derives a starting schema from sample
// records, which the CLI offers to room owners.
package validation
