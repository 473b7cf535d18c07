package prompts

import "fmt"

// AnswerSystemPrompt frames the rendering model.
func AnswerSystemPrompt() string {
	return "You are a helpful movie assistant. Respond ONLY in plain English text. Never respond with JSON or code."
}

// AnswerPrompt asks for a natural-language answer from result rows. rowsJSON
// holds the rows shown; omitted is how many were left out.
func AnswerPrompt(query, rowsJSON string, omitted int) string {
	more := ""
	if omitted > 0 {
		more = fmt.Sprintf("\n... and %d more results", omitted)
	}
	return fmt.Sprintf(`Given the question and the results, provide a clear, natural language answer.
%s
Be informative and thorough. Include all relevant details from the results.

Question: %s

Results:
%s%s`, NoJSONInstruction, query, rowsJSON, more)
}
