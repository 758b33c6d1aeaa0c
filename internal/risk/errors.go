package risk

import "fmt"

// InvalidGraphError reports a structurally valid graph that fails a
// model-specific precondition.
type InvalidGraphError struct {
	Model  string
	Reason string
}

func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("graph unsuitable for model %s: %s", e.Model, e.Reason)
}
