package domain

import "fmt"

// FailureKind partitions validation failures into the recoverable taxonomy
// consumed by the fracture classifier. Every kind is an input-data problem,
// never a process-fatal condition.
type FailureKind string

const (
	SchemaError    FailureKind = "schema"    // missing/extra top-level keys
	TypeError      FailureKind = "type"      // wrong shape or type for a field
	RangeError     FailureKind = "range"     // weight or score out of bounds
	ReferenceError FailureKind = "reference" // score references unknown alternative/criterion
	InvariantError FailureKind = "invariant" // weight sum or score completeness violated
	ParseError     FailureKind = "parse"     // document is not parseable at all
)

// Failure is a validation failure with enough context for downstream
// classification: the field that failed, the raw value received, and a
// human-readable detail. It always names the specific offender.
type Failure struct {
	Kind   FailureKind
	Field  string // e.g. "criteria.Cost.weight", "scores.A.Quality"
	Value  any    // the raw value that was rejected (may be nil)
	Detail string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Field == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("%s: field %q: %s (got %v)", f.Kind, f.Field, f.Detail, f.Value)
}

// NewFailure constructs a Failure for the given kind and field.
func NewFailure(kind FailureKind, field string, value any, format string, args ...any) *Failure {
	return &Failure{
		Kind:   kind,
		Field:  field,
		Value:  value,
		Detail: fmt.Sprintf(format, args...),
	}
}
