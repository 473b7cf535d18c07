package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/cinegraph/llm"
)

func TestGeminiProvider_BuildURL(t *testing.T) {
	p := &GeminiProvider{}

	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		p.BuildURL("", "gemini-2.0-flash"))
	assert.Equal(t,
		"http://localhost:9000/v1beta/models/gemini-pro:generateContent",
		p.BuildURL("http://localhost:9000/", "gemini-pro"))
}

func TestGeminiProvider_SetHeaders(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	req, err := http.NewRequest(http.MethodPost, "https://generativelanguage.googleapis.com", nil)
	require.NoError(t, err)

	(&GeminiProvider{}).SetHeaders(req)
	assert.Equal(t, "g-key", req.Header.Get("x-goog-api-key"))
}

func TestGeminiProvider_BuildRequestBody(t *testing.T) {
	p := &GeminiProvider{}

	temp := 0.0
	body, err := p.BuildRequestBody("gemini-2.0-flash", []llm.Message{
		{Role: "system", Content: "Classify the question."},
		{Role: "user", Content: "Movies like Alien"},
		{Role: "assistant", Content: "similarity"},
	}, &temp, 256)
	require.NoError(t, err)

	var req geminiRequest
	require.NoError(t, json.Unmarshal(body, &req))

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "Classify the question.", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, 256, req.GenerationConfig.MaxOutputTokens)
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestGeminiProvider_BuildRequestBody_NoConfig(t *testing.T) {
	body, err := (&GeminiProvider{}).BuildRequestBody("m", []llm.Message{{Role: "user", Content: "hi"}}, nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "generationConfig")
	assert.NotContains(t, string(body), "systemInstruction")
}

func TestGeminiProvider_ParseResponse(t *testing.T) {
	p := &GeminiProvider{}

	body := []byte(`{
		"candidates": [{
			"content": {
				"role": "model",
				"parts": [
					{"text": "Looking for the director first.", "thought": true},
					{"text": "Ridley Scott directed Alien."}
				]
			},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 7, "totalTokenCount": 19},
		"modelVersion": "gemini-2.0-flash-001"
	}`)

	resp, err := p.ParseResponse(body, "gemini-2.0-flash")
	require.NoError(t, err)

	assert.Equal(t, "Ridley Scott directed Alien.", resp.Content)
	assert.Equal(t, "gemini-2.0-flash-001", resp.Model)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
}

func TestGeminiProvider_ParseResponse_NoCandidates(t *testing.T) {
	_, err := (&GeminiProvider{}).ParseResponse([]byte(`{"candidates": []}`), "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
