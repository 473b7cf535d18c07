// Package config provides configuration loading and management for cinegraph.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/cinegraph/model"
)

// Config represents the complete cinegraph configuration.
type Config struct {
	Graph    GraphConfig    `yaml:"graph"`
	Vector   VectorConfig   `yaml:"vector"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	HTTP     HTTPConfig     `yaml:"http"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`

	// Models configures capabilities and endpoints inline. Empty uses the
	// built-in default registry.
	Models *model.RegistryConfig `yaml:"models,omitempty"`

	// ModelsFile points at a separate registry file that is watched and
	// hot-reloaded. It takes precedence over Models.
	ModelsFile string `yaml:"models_file,omitempty"`
}

// GraphConfig configures the Neo4j connection.
type GraphConfig struct {
	URI          string        `yaml:"uri"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	MaxPoolSize  int           `yaml:"max_pool_size"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// VectorConfig configures the vector index and the embedder feeding it.
type VectorConfig struct {
	// IndexHost is the Pinecone index host (https://<index>-<project>.svc.<env>.pinecone.io).
	IndexHost string        `yaml:"index_host"`
	APIKey    string        `yaml:"api_key"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"`
	Embedding EmbedConfig   `yaml:"embedding"`
}

// EmbedConfig configures the embedding model.
type EmbedConfig struct {
	// Provider is "gemini" or "openai" (any OpenAI-compatible server).
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
}

// RedisConfig configures the embedding cache. An empty URL disables caching.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL. Empty, without Embedded, disables the
	// responder and call recording.
	URL string `yaml:"url"`
	// Embedded starts an in-process server for serve when URL is empty.
	Embedded    bool   `yaml:"embedded"`
	Subject     string `yaml:"subject"`
	QueueGroup  string `yaml:"queue_group"`
	CallSubject string `yaml:"call_subject"`
	// RecordCalls publishes every LLM call record on CallSubject.
	RecordCalls bool `yaml:"record_calls"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PipelineConfig tunes the question answering stages.
type PipelineConfig struct {
	// MaxRenderRows caps the rows handed to the answer renderer.
	MaxRenderRows int `yaml:"max_render_rows"`
	// ResolverConcurrency bounds concurrent entity lookups.
	ResolverConcurrency int `yaml:"resolver_concurrency"`
	// PlanAttempts is how many times the planner is asked for parseable JSON.
	PlanAttempts int `yaml:"plan_attempts"`
	// SimilarityTopK and FallbackTopK are the vector search depths.
	SimilarityTopK int `yaml:"similarity_top_k"`
	FallbackTopK   int `yaml:"fallback_top_k"`
	// Similarity enables the similarity route. Requires a vector index.
	Similarity bool `yaml:"similarity"`
	// Timeout bounds a whole question.
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:          "neo4j://localhost:7687",
			Username:     "neo4j",
			Database:     "neo4j",
			MaxPoolSize:  50,
			QueryTimeout: 30 * time.Second,
		},
		Vector: VectorConfig{
			Timeout: 30 * time.Second,
			Embedding: EmbedConfig{
				Provider:   "gemini",
				Model:      "text-embedding-004",
				Dimensions: 768,
			},
		},
		Redis: RedisConfig{
			TTL: 7 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			Subject:     "cinegraph.ask",
			QueueGroup:  "cinegraph",
			CallSubject: "cinegraph.llm.calls",
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxRenderRows:       50,
			ResolverConcurrency: 4,
			PlanAttempts:        2,
			SimilarityTopK:      50,
			FallbackTopK:        20,
			Similarity:          true,
			Timeout:             2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return fmt.Errorf("graph.uri is required")
	}
	if c.Graph.QueryTimeout <= 0 {
		return fmt.Errorf("graph.query_timeout must be positive")
	}
	if c.Pipeline.Similarity && c.Vector.IndexHost == "" {
		return fmt.Errorf("vector.index_host is required when pipeline.similarity is enabled")
	}
	switch c.Vector.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("vector.embedding.provider must be gemini or openai, got %q", c.Vector.Embedding.Provider)
	}
	if c.Pipeline.MaxRenderRows <= 0 {
		return fmt.Errorf("pipeline.max_render_rows must be positive")
	}
	if c.Pipeline.ResolverConcurrency <= 0 {
		return fmt.Errorf("pipeline.resolver_concurrency must be positive")
	}
	if c.Pipeline.PlanAttempts <= 0 {
		return fmt.Errorf("pipeline.plan_attempts must be positive")
	}
	if c.Pipeline.SimilarityTopK <= 0 || c.Pipeline.FallbackTopK <= 0 {
		return fmt.Errorf("pipeline top_k values must be positive")
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}
	if c.Models != nil && !c.Models.IsEmpty() {
		if err := c.Models.Validate(); err != nil {
			return fmt.Errorf("models: %w", err)
		}
	}
	return nil
}

// Registry builds the model registry from the inline models section,
// or the default registry when none is configured.
func (c *Config) Registry() (*model.Registry, error) {
	if c.ModelsFile != "" {
		return model.LoadFromFile(c.ModelsFile)
	}
	if c.Models == nil || c.Models.IsEmpty() {
		return model.NewDefaultRegistry(), nil
	}
	return model.FromConfig(c.Models)
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile decodes path into c. Keys absent from the file keep their
// current values, which gives layered files their precedence.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references. A reference to an
// unset or empty variable without a default becomes the empty string.
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}

// ApplyEnv overrides connection settings and secrets from the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Graph.URI, "NEO4J_URI")
	set(&c.Graph.Username, "NEO4J_USERNAME")
	set(&c.Graph.Password, "NEO4J_PASSWORD")
	set(&c.Vector.APIKey, "PINECONE_API_KEY")
	set(&c.Vector.IndexHost, "PINECONE_INDEX_HOST")
	set(&c.NATS.URL, "NATS_URL")
	set(&c.Redis.URL, "REDIS_URL")
	switch c.Vector.Embedding.Provider {
	case "gemini":
		set(&c.Vector.Embedding.APIKey, "GEMINI_API_KEY")
	case "openai":
		set(&c.Vector.Embedding.APIKey, "OPENAI_API_KEY")
	}
}
