package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultCallSubject is the NATS subject call records are published on.
const DefaultCallSubject = "cinegraph.llm.calls"

// CallRecord describes a single completion request across its fallback chain.
type CallRecord struct {
	RequestID     string     `json:"request_id"`
	TraceID       string     `json:"trace_id,omitempty"`
	Stage         string     `json:"stage,omitempty"`
	Capability    string     `json:"capability"`
	Model         string     `json:"model,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	Messages      []Message  `json:"messages,omitempty"`
	Response      string     `json:"response,omitempty"`
	Usage         TokenUsage `json:"usage"`
	FinishReason  string     `json:"finish_reason,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   time.Time  `json:"completed_at"`
	DurationMs    int64      `json:"duration_ms"`
	Error         string     `json:"error,omitempty"`
	Retries       int        `json:"retries"`
	FallbacksUsed []string   `json:"fallbacks_used,omitempty"`
}

// Subject returns the per-record subject: <base>.<trace>.<request>, with the
// trace segment omitted when there is none.
func (r *CallRecord) Subject(base string) string {
	if r.TraceID == "" {
		return base + "." + r.RequestID
	}
	return base + "." + r.TraceID + "." + r.RequestID
}

// publisher is the part of *nats.Conn the store uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// CallStore publishes call records to NATS so they can be audited or replayed.
type CallStore struct {
	nc             publisher
	subject        string
	logger         *slog.Logger
	redactMessages bool
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithSubject overrides the base subject.
func WithSubject(subject string) CallStoreOption {
	return func(s *CallStore) {
		s.subject = subject
	}
}

// WithStoreLogger sets the logger for the call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// WithRedactedMessages drops prompts from published records.
func WithRedactedMessages() CallStoreOption {
	return func(s *CallStore) {
		s.redactMessages = true
	}
}

// NewCallStore creates a call store publishing through nc.
func NewCallStore(nc *nats.Conn, opts ...CallStoreOption) (*CallStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection required")
	}
	return newCallStore(nc, opts...), nil
}

func newCallStore(p publisher, opts ...CallStoreOption) *CallStore {
	s := &CallStore{
		nc:      p,
		subject: DefaultCallSubject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store publishes a record. It never blocks on the broker.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.RequestID == "" {
		return fmt.Errorf("call record requires a request id")
	}

	out := *record
	if s.redactMessages {
		out.Messages = nil
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if err := s.nc.Publish(out.Subject(s.subject), data); err != nil {
		return fmt.Errorf("publish call record: %w", err)
	}
	s.logger.Debug("Published LLM call",
		"request_id", out.RequestID,
		"capability", out.Capability,
		"duration_ms", out.DurationMs)
	return nil
}

// SortByStartTime orders records chronologically.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
