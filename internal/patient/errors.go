package patient

import "fmt"

// ValidationError reports a malformed or inconsistent graph at
// construction time. The input must be fixed; retrying is pointless.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid clinical graph: %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
