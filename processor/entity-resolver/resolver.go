// Package entityresolver grounds a user question in the movie graph. It asks
// the language model for the entity names mentioned in the question and looks
// each one up against the canonical property of every node label.
package entityresolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/cinegraph/cypher"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/model"
	"github.com/c360studio/cinegraph/vocabulary/movie"
	"github.com/c360studio/cinegraph/workflow/prompts"
)

// Stage is the pipeline stage name used for model selection and call records.
const Stage = "entity-resolver"

// DefaultConcurrency bounds the number of candidates resolved at once.
const DefaultConcurrency = 4

// MatchType records how a candidate matched a node.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
)

// ResolvedEntity ties a user's spelling to a stored node.
type ResolvedEntity struct {
	SearchTerm string      `json:"searchTerm"`
	Label      movie.Label `json:"label"`
	NodeName   string      `json:"nodeName"`
	MatchType  MatchType   `json:"matchType"`
}

// Result is the outcome of resolving one question. Every extracted candidate
// appears either in Entities (one or more times) or exactly once in Unresolved.
type Result struct {
	Query      string           `json:"query"`
	Entities   []ResolvedEntity `json:"entities"`
	Unresolved []string         `json:"unresolved"`
}

// Grounding converts the result into the prompt context shared by the
// classifier and planner.
func (r Result) Grounding() prompts.Grounding {
	g := prompts.Grounding{Unresolved: r.Unresolved}
	for _, e := range r.Entities {
		g.Entities = append(g.Entities, prompts.EntityFact{
			SearchTerm: e.SearchTerm,
			Label:      string(e.Label),
			NodeName:   e.NodeName,
		})
	}
	return g
}

// FirstOfLabel returns the first resolved entity with the given label.
func (r Result) FirstOfLabel(label movie.Label) (ResolvedEntity, bool) {
	for _, e := range r.Entities {
		if e.Label == label {
			return e, true
		}
	}
	return ResolvedEntity{}, false
}

// Resolver extracts and resolves entities.
type Resolver struct {
	llm         llm.Completer
	graph       graph.Reader
	logger      *slog.Logger
	concurrency int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithConcurrency bounds how many candidates are looked up in parallel.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates a Resolver.
func New(completer llm.Completer, reader graph.Reader, opts ...Option) *Resolver {
	r := &Resolver{
		llm:         completer,
		graph:       reader,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve extracts candidate names from query and resolves each against the
// graph. Extraction failures degrade to an empty candidate list; graph
// failures are returned.
func (r *Resolver) Resolve(ctx context.Context, query string) (Result, error) {
	candidates := r.Extract(ctx, query)
	result := Result{Query: query, Entities: []ResolvedEntity{}, Unresolved: []string{}}
	if len(candidates) == 0 {
		return result, nil
	}

	matches := make([][]ResolvedEntity, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, name := range candidates {
		g.Go(func() error {
			found, err := r.ResolveEntity(gctx, name)
			if err != nil {
				return err
			}
			matches[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for i, found := range matches {
		if len(found) == 0 {
			result.Unresolved = append(result.Unresolved, candidates[i])
			continue
		}
		result.Entities = append(result.Entities, found...)
	}

	r.logger.Debug("Entities resolved",
		"query", query,
		"candidates", len(candidates),
		"resolved", len(result.Entities),
		"unresolved", len(result.Unresolved))
	return result, nil
}

// Extract asks the model for the entity names mentioned in query. It never
// fails: an unusable reply yields an empty list.
func (r *Resolver) Extract(ctx context.Context, query string) []string {
	ctx = llm.WithStage(ctx, Stage)
	temperature := 0.0
	resp, err := r.llm.Complete(ctx, llm.Request{
		Capability: model.CapabilityForStage(Stage),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.ExtractionSystemPrompt()},
			{Role: "user", Content: query},
		},
		Temperature: &temperature,
		MaxTokens:   256,
	})
	if err != nil {
		r.logger.Warn("Entity extraction failed, continuing without entities", "error", err)
		return nil
	}

	var names []any
	if err := llm.DecodeJSONArray(resp.Content, &names); err != nil {
		r.logger.Warn("Entity extraction reply was not a JSON array",
			"error", err,
			"content", truncate(resp.Content, 200))
		return nil
	}
	return dedupe(names)
}

// ResolveEntity looks name up under every label in vocabulary order. A label
// is only searched by substring when it has no exact match. When any label
// matched exactly, partial matches from other labels are dropped.
func (r *Resolver) ResolveEntity(ctx context.Context, name string) ([]ResolvedEntity, error) {
	var exact, partial []ResolvedEntity
	seen := make(map[string]bool)

	for _, label := range movie.Labels {
		rows, err := r.graph.RunRead(ctx, cypher.ExactMatch(label, name))
		if err != nil {
			return nil, fmt.Errorf("exact lookup %s %q: %w", label, name, err)
		}
		if len(rows) > 0 {
			exact = appendMatches(exact, seen, rows, name, label, MatchExact)
			continue
		}

		rows, err = r.graph.RunRead(ctx, cypher.PartialMatch(label, name))
		if err != nil {
			return nil, fmt.Errorf("partial lookup %s %q: %w", label, name, err)
		}
		partial = appendMatches(partial, seen, rows, name, label, MatchPartial)
	}

	if len(exact) > 0 {
		return exact, nil
	}
	return partial, nil
}

func appendMatches(dst []ResolvedEntity, seen map[string]bool, rows []graph.Row, term string, label movie.Label, mt MatchType) []ResolvedEntity {
	for _, row := range rows {
		nodeName, ok := row["nodeName"].(string)
		if !ok || nodeName == "" {
			continue
		}
		key := string(label) + "\x00" + nodeName
		if seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, ResolvedEntity{
			SearchTerm: term,
			Label:      label,
			NodeName:   nodeName,
			MatchType:  mt,
		})
	}
	return dst
}

// dedupe keeps the first spelling of each non-empty string, ignoring case.
func dedupe(values []any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
