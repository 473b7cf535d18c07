package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// pineconeAPIVersion pins the data-plane API.
const pineconeAPIVersion = "2024-07"

// Match is one nearest-neighbour result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the "text" metadata field, or "".
func (m Match) Text() string {
	s, _ := m.Metadata["text"].(string)
	return s
}

// Record is a vector to upsert.
type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher runs nearest-neighbour queries.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Index is a Pinecone index reached through its data-plane host.
type Index struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
	logger     *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithNamespace scopes every request to a namespace.
func WithNamespace(ns string) IndexOption {
	return func(i *Index) { i.namespace = ns }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) IndexOption {
	return func(i *Index) { i.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) IndexOption {
	return func(i *Index) { i.logger = l }
}

// NewIndex creates an index client. host may omit the scheme.
func NewIndex(host, apiKey string, opts ...IndexOption) (*Index, error) {
	if host == "" {
		return nil, fmt.Errorf("index host is required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	idx := &Index{
		host:       strings.TrimSuffix(host, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

// Query returns the topK closest vectors with their metadata, best first.
func (i *Index) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	var resp queryResponse
	err := i.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       i.namespace,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	i.logger.Debug("Vector query", "top_k", topK, "matches", len(resp.Matches))
	return resp.Matches, nil
}

type upsertRequest struct {
	Vectors   []Record `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert writes records and returns how many the index accepted.
func (i *Index) Upsert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var resp upsertResponse
	if err := i.post(ctx, "/vectors/upsert", upsertRequest{Vectors: records, Namespace: i.namespace}, &resp); err != nil {
		return 0, fmt.Errorf("vector upsert: %w", err)
	}
	return resp.UpsertedCount, nil
}

// Stats describes the index contents.
type Stats struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// DescribeStats reports dimension and vector count. It doubles as a
// reachability check.
func (i *Index) DescribeStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := i.post(ctx, "/describe_index_stats", struct{}{}, &stats); err != nil {
		return nil, fmt.Errorf("describe index stats: %w", err)
	}
	return &stats, nil
}

func (i *Index) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", i.apiKey)
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
