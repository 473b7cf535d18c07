package plan

import "fmt"

// InvalidPlanError reports a plan that references a value outside the whitelist.
// Its message is the human-readable reason, for example "Invalid label: Person".
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...any) error {
	return &InvalidPlanError{Reason: fmt.Sprintf(format, args...)}
}
