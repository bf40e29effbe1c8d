package invoice

import "fmt"

// MalformedResponseError is returned when the model reply is not valid JSON
// even after sanitization and numeric-literal cleaning. Raw carries the
// unmodified reply for diagnostics.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError is returned when a declared field arrives with a shape
// the schema cannot reconcile, such as a scalar where a nested record is
// expected. Path is the dotted field path from the root; an empty Path means
// the top-level value itself.
type SchemaMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema mismatch: expected %s at top level, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("schema mismatch at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// ValidationError is returned when a leaf value cannot be coerced to its
// declared scalar type, such as non-numeric text in a numeric field.
type ValidationError struct {
	Path  string
	Value any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Path, e.Value)
}
