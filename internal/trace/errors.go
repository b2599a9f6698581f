package trace

import "fmt"

// FieldError reports a field that matched a declared grammar but failed
// typed coercion. It is fatal for the parse: the line and field are always
// identified, never silently defaulted.
type FieldError struct {
	Line   int
	Kind   Kind
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("line %d: %s field %q: %s (got %q)", e.Line, e.Kind, e.Field, e.Reason, e.Value)
}
