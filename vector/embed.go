package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelNamer is implemented by embedders that know their model name. The
// cache uses it to keep vectors from different models apart.
type ModelNamer interface {
	ModelName() string
}

// GeminiEmbedder calls the Gemini embedContent API.
type GeminiEmbedder struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// NewGeminiEmbedder creates a Gemini embedder.
func NewGeminiEmbedder(model, apiKey string) *GeminiEmbedder {
	return &GeminiEmbedder{
		BaseURL:    "https://generativelanguage.googleapis.com",
		Model:      model,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ModelName returns the embedding model.
func (g *GeminiEmbedder) ModelName() string { return g.Model }

// Embed returns the embedding of text.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", strings.TrimSuffix(g.BaseURL, "/"), g.Model)
	body := map[string]any{
		"model":   "models/" + g.Model,
		"content": map[string]any{"parts": []map[string]string{{"text": text}}},
	}

	var resp struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := postJSON(ctx, g.HTTPClient, url, map[string]string{"x-goog-api-key": g.APIKey}, body, &resp); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding")
	}
	return resp.Embedding.Values, nil
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint through the
// go-openai client, so any compatible server (OpenAI, TEI, LocalAI, Ollama)
// can back it.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedder. An empty baseURL
// uses the OpenAI API; dimensions of 0 leaves the model default.
func NewOpenAIEmbedder(baseURL, model, apiKey string, dimensions int) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = "local" // local servers ignore the key
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: 30 * time.Second}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}
}

// ModelName returns the embedding model.
func (o *OpenAIEmbedder) ModelName() string { return o.model }

// Embed returns the embedding of text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding")
	}
	return resp.Data[0].Embedding, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return json.Unmarshal(data, out)
}
