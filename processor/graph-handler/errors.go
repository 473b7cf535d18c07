package graphhandler

// RephraseMessage is shown to the user when no usable plan could be produced.
const RephraseMessage = "I couldn't understand that question well enough to look it up. Could you please rephrase it?"

// PlanningError reports that the model produced no usable plan, either
// because its reply never parsed or because the plan broke the whitelist.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string {
	if e.Err == nil {
		return "planning failed"
	}
	return "planning failed: " + e.Err.Error()
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// UserMessage is the text to show instead of an answer.
func (e *PlanningError) UserMessage() string {
	return RephraseMessage
}
