package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"type": "graph", "reasoning": "counting"}`,
			wantKey: "type",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"steps\": []}\n```",
			wantKey: "steps",
		},
		{
			name:    "fence without language",
			input:   "```\n{\"steps\": []}\n```",
			wantKey: "steps",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"type\": \"similarity\"}\n```\n\nThe user wants recommendations.",
			wantKey: "type",
		},
		{
			name:    "prose before object",
			input:   "Here is the plan:\n{\"steps\": [{\"type\": \"limit\", \"value\": 5}]}",
			wantKey: "steps",
		},
		{
			name:    "comments and trailing commas",
			input:   "```json\n{\n  \"steps\": [\n    {\"type\": \"describe\", \"label\": \"Movie\", \"name\": \"Heat\"},  // whole movie\n  ],\n}\n```",
			wantKey: "steps",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"source": "http://example.com/movies"}`,
			wantKey: "source",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I am not sure what you mean.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if tt.wantKey != "" {
				if _, ok := parsed[tt.wantKey]; !ok {
					t.Errorf("expected key %q in parsed JSON, got: %v", tt.wantKey, parsed)
				}
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{
			name:    "plain array",
			input:   `["Christopher Nolan", "Inception"]`,
			wantLen: 2,
		},
		{
			name:    "markdown code block array",
			input:   "```json\n[\"Tom Hardy\", \"Heat\"]\n```",
			wantLen: 2,
		},
		{
			name:    "empty array",
			input:   "```json\n[]\n```",
			wantLen: 0,
		},
		{
			name:    "array with comments",
			input:   "```json\n[\n  \"Nolan\",  // director\n  \"Sci-Fi\"   // genre\n]\n```",
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSONArray(tt.input)
			if result == "" {
				t.Fatal("expected result, got empty string")
			}

			var parsed []any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON array: %v\nresult: %s", err, result)
			}

			if len(parsed) != tt.wantLen {
				t.Errorf("expected array length %d, got %d", tt.wantLen, len(parsed))
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Type string `json:"type"`
	}
	if err := DecodeJSON("```json\n{\"type\": \"graph\"}\n```", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Type != "graph" {
		t.Errorf("got %q, want graph", out.Type)
	}

	if err := DecodeJSON("no json here", &out); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}

	if err := DecodeJSON(`{"type": }`, &out); err == nil || errors.Is(err, ErrNoJSON) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestDecodeJSONArray(t *testing.T) {
	var names []string
	if err := DecodeJSONArray("Entities:\n[\"Heat\", \"Al Pacino\"]", &names); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[1] != "Al Pacino" {
		t.Errorf("unexpected names: %v", names)
	}

	if err := DecodeJSONArray("nothing", &names); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "key": "value",`,
			expected: `  "key": "value",`,
		},
		{
			name:     "trailing comment",
			input:    `  "key": "value",  // a comment`,
			expected: `  "key": "value",`,
		},
		{
			name:     "URL with trailing comment",
			input:    `  "url": "http://example.com",  // the url`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // This is a comment`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "name": "a\"b//c",  // comment`,
			expected: `  "name": "a\"b//c",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `{"a": 1,}`, `{"a": 1}`},
		{"array with newline", "[1, 2,\n]", "[1, 2\n]"},
		{"comma inside string", `{"v": "Lock, Stock, ]"}`, `{"v": "Lock, Stock, ]"}`},
		{"escaped quote in string", `{"v": "say \", }",}`, `{"v": "say \", }"}`},
		{"no change", `{"a": [1, 2]}`, `{"a": [1, 2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripTrailingCommas(tt.in); got != tt.want {
				t.Errorf("stripTrailingCommas(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON_KeepsStringValues(t *testing.T) {
	var out struct {
		Value string `json:"value"`
		Steps []int  `json:"steps"`
	}
	if err := DecodeJSON(`{"value": "Lock, Stock, ]", "steps": [1, 2,],}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Value != "Lock, Stock, ]" {
		t.Errorf("string value altered: %q", out.Value)
	}
	if len(out.Steps) != 2 {
		t.Errorf("unexpected steps: %v", out.Steps)
	}
}
