package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// thinkPattern matches inline reasoning emitted by some open models.
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ContentBlock is one typed block of a structured model response.
type ContentBlock struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

// ExtractText turns raw message content into answer text.
//
// Content may be a JSON string or an array of typed blocks. Only blocks of type
// "text" (or untyped blocks carrying text, as Gemini parts do) are kept, in order,
// joined by newlines. Reasoning blocks, Gemini parts flagged as thoughts and
// inline <think> sections are dropped. Every provider routes its content through
// this function so callers only ever see plain text.
func ExtractText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return stripThinking(s)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}

	var parts []string
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			parts = append(parts, str)
			continue
		}
		var block ContentBlock
		if err := json.Unmarshal(item, &block); err != nil {
			continue
		}
		if block.Thought {
			continue
		}
		if block.Type == "text" || (block.Type == "" && block.Text != "") {
			parts = append(parts, block.Text)
		}
	}
	return stripThinking(strings.Join(parts, "\n"))
}

func stripThinking(s string) string {
	if strings.Contains(s, "<think>") {
		s = thinkPattern.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
