package structure

import "fmt"

// SchemaErrorKind classifies why a spec failed validation.
type SchemaErrorKind string

const (
	// ErrOutOfBounds indicates a value outside its declared [min, max] range
	ErrOutOfBounds SchemaErrorKind = "out_of_bounds"
	// ErrMissingField indicates a schema parameter absent from the spec
	ErrMissingField SchemaErrorKind = "missing_field"
	// ErrUnknownCategory indicates a categorical value outside its domain
	ErrUnknownCategory SchemaErrorKind = "unknown_category"
)

// SchemaError reports a spec/schema mismatch, always naming the offending
// field. Recoverable: the decision loop resamples or penalizes, it never
// aborts on a SchemaError.
type SchemaError struct {
	Field  string
	Kind   SchemaErrorKind
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parameter %s: %s (%s)", e.Field, e.Kind, e.Detail)
	}
	return fmt.Sprintf("parameter %s: %s", e.Field, e.Kind)
}
