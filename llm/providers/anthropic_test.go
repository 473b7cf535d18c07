package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/cinegraph/llm"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "empty uses default", baseURL: "", want: "https://api.anthropic.com/v1/messages"},
		{name: "custom base URL", baseURL: "https://proxy.internal", want: "https://proxy.internal/v1/messages"},
		{name: "trailing slash handled", baseURL: "https://api.anthropic.com/", want: "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL, "claude-haiku"))
		})
	}
}

func TestAnthropicProvider_SetHeaders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	req, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)

	(&AnthropicProvider{}).SetHeaders(req)

	assert.Equal(t, "sk-ant-test", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}

	messages := []llm.Message{
		{Role: "system", Content: "You answer questions about movies."},
		{Role: "user", Content: "Who directed Heat?"},
		{Role: "assistant", Content: "Michael Mann."},
		{Role: "user", Content: "And who starred in it?"},
	}

	temp := 0.7
	body, err := p.BuildRequestBody("claude-haiku", messages, &temp, 2048)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"system":"You answer questions about movies."`)
	assert.Contains(t, string(body), `"model":"claude-haiku"`)
	assert.Contains(t, string(body), `"max_tokens":2048`)
	assert.NotContains(t, string(body), `"role":"system"`)
	assert.Contains(t, string(body), `"role":"assistant"`)
}

func TestAnthropicProvider_BuildRequestBody_Defaults(t *testing.T) {
	p := &AnthropicProvider{}
	messages := []llm.Message{{Role: "user", Content: "Hello"}}

	body, err := p.BuildRequestBody("claude-haiku", messages, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"max_tokens":4096`)
	assert.NotContains(t, string(body), `"temperature"`)

	zero := 0.0
	body, err = p.BuildRequestBody("claude-haiku", messages, &zero, 0)
	require.NoError(t, err)
	// 0 is deterministic, not "unset"
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	responseBody := []byte(`{
		"id": "msg_123",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "thinking", "thinking": "The user wants the director."},
			{"type": "text", "text": "Michael Mann directed Heat."}
		],
		"model": "claude-haiku-20250101",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 15, "output_tokens": 8}
	}`)

	resp, err := p.ParseResponse(responseBody, "claude-haiku")
	require.NoError(t, err)

	assert.Equal(t, "Michael Mann directed Heat.", resp.Content)
	assert.Equal(t, "claude-haiku-20250101", resp.Model)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.PromptTokens)
	assert.Equal(t, 8, resp.Usage.CompletionTokens)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
}

func TestAnthropicProvider_ParseResponse_MultipleTextBlocks(t *testing.T) {
	p := &AnthropicProvider{}

	responseBody := []byte(`{
		"content": [
			{"type": "text", "text": "First part."},
			{"type": "text", "text": "Second part."}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`)

	resp, err := p.ParseResponse(responseBody, "claude-haiku")
	require.NoError(t, err)

	assert.Equal(t, "First part.\nSecond part.", resp.Content)
	assert.Equal(t, "claude-haiku", resp.Model, "falls back to the requested model")
}
