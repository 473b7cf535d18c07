// Package similarityhandler answers "movies like X" questions. Nearest
// neighbours of the source movie are pulled from the vector index, filtered
// through the graph to those sharing a genre with it, and ranked by the
// language model.
package similarityhandler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/c360studio/cinegraph/cypher"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/model"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	"github.com/c360studio/cinegraph/vector"
	"github.com/c360studio/cinegraph/vocabulary/movie"
	"github.com/c360studio/cinegraph/workflow/prompts"
)

// Stage names used for model selection and call records.
const (
	RankerStage   = "similarity-ranker"
	FallbackStage = "similarity-fallback"
)

const (
	// DefaultTopK is the neighbour count fetched for a resolved source movie.
	DefaultTopK = 50

	// DefaultFallbackTopK is the neighbour count for an unanchored search.
	DefaultFallbackTopK = 20
)

// titlePattern pulls the movie title out of a stored chunk.
var titlePattern = regexp.MustCompile(`(?i)Movie Title:\s*(.+)`)

// Handler answers similarity questions.
type Handler struct {
	llm          llm.Completer
	graph        graph.Reader
	embedder     vector.Embedder
	index        vector.Searcher
	logger       *slog.Logger
	topK         int
	fallbackTopK int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTopK sets the neighbour counts for anchored and fallback searches.
func WithTopK(topK, fallbackTopK int) Option {
	return func(h *Handler) {
		if topK > 0 {
			h.topK = topK
		}
		if fallbackTopK > 0 {
			h.fallbackTopK = fallbackTopK
		}
	}
}

// New creates a Handler.
func New(completer llm.Completer, reader graph.Reader, embedder vector.Embedder, index vector.Searcher, opts ...Option) *Handler {
	h := &Handler{
		llm:          completer,
		graph:        reader,
		embedder:     embedder,
		index:        index,
		logger:       slog.Default(),
		topK:         DefaultTopK,
		fallbackTopK: DefaultFallbackTopK,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle recommends movies similar to the first resolved Movie entity. Without
// one, or when that movie has no genres in the graph, it falls back to a
// search over the raw question text.
func (h *Handler) Handle(ctx context.Context, query string, res entityresolver.Result) (string, error) {
	source, ok := res.FirstOfLabel(movie.LabelMovie)
	if !ok {
		h.logger.Info("No movie entity resolved, using fallback search", "query", query)
		return h.Fallback(ctx, query)
	}
	title := source.NodeName

	vec, err := h.embedder.Embed(ctx, title)
	if err != nil {
		return "", fmt.Errorf("embed %q: %w", title, err)
	}
	matches, err := h.index.Query(ctx, vec, h.topK)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		return "I couldn't find any similar movies.", nil
	}

	profile, err := h.profile(ctx, title)
	if err != nil {
		return "", err
	}
	if len(profile.Genres) == 0 {
		h.logger.Warn("Source movie has no genres, using fallback search", "title", title)
		return h.Fallback(ctx, query)
	}

	titles, texts := candidateTitles(matches, title)
	h.logger.Debug("Similarity candidates",
		"source", title,
		"matches", len(matches),
		"titles", len(titles))
	if len(titles) == 0 {
		return noOverlap(profile), nil
	}

	rows, err := h.graph.RunRead(ctx, cypher.SharedGenres(titles, profile.Genres))
	if err != nil {
		return "", fmt.Errorf("genre cross-check: %w", err)
	}
	candidates := make([]prompts.Candidate, 0, len(rows))
	for _, row := range rows {
		t, _ := row["title"].(string)
		if t == "" {
			continue
		}
		candidates = append(candidates, prompts.Candidate{
			Title:  t,
			Genres: stringList(row["genres"]),
			Text:   texts[t],
		})
	}
	// Keep vector-similarity order for the ranking prompt.
	position := make(map[string]int, len(titles))
	for i, t := range titles {
		position[t] = i
	}
	slices.SortStableFunc(candidates, func(a, b prompts.Candidate) int {
		return cmp.Compare(position[a.Title], position[b.Title])
	})
	h.logger.Debug("Genre cross-check", "source", title, "kept", len(candidates), "of", len(titles))
	if len(candidates) == 0 {
		return noOverlap(profile), nil
	}

	return h.rank(ctx, RankerStage, prompts.RankPrompt(profile, candidates), candidateNames(candidates))
}

// Fallback embeds the question itself and ranks the nearest chunks without a
// graph cross-check.
func (h *Handler) Fallback(ctx context.Context, query string) (string, error) {
	vec, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	matches, err := h.index.Query(ctx, vec, h.fallbackTopK)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if t := m.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "I couldn't find any matching movies.", nil
	}

	names, _ := candidateTitles(matches, "")
	return h.rank(ctx, FallbackStage, prompts.FallbackRankPrompt(query, texts), names)
}

func (h *Handler) profile(ctx context.Context, title string) (prompts.SourceMovie, error) {
	rows, err := h.graph.RunRead(ctx, cypher.MovieProfile(title))
	if err != nil {
		return prompts.SourceMovie{}, fmt.Errorf("movie profile %q: %w", title, err)
	}
	p := prompts.SourceMovie{Title: title}
	if len(rows) > 0 {
		p.Genres = stringList(rows[0]["genres"])
		p.Themes = stringList(rows[0]["themes"])
	}
	return p, nil
}

// rank asks the model for the final list. If the model fails the candidate
// titles are listed without explanations.
func (h *Handler) rank(ctx context.Context, stage, prompt string, names []string) (string, error) {
	ctx = llm.WithStage(ctx, stage)
	temperature := 0.5
	resp, err := h.llm.Complete(ctx, llm.Request{
		Capability: model.CapabilityForStage(stage),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.RecommendSystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Temperature: &temperature,
		MaxTokens:   2048,
	})
	if err == nil {
		if answer := strings.TrimSpace(resp.Content); answer != "" {
			return answer, nil
		}
	}
	if len(names) == 0 {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		return "", fmt.Errorf("rank recommendations: %w", err)
	}

	h.logger.Warn("Recommendation ranking failed, listing candidates", "stage", stage, "error", err)
	return listTitles(names), nil
}

// candidateTitles extracts distinct titles from matches, skipping exclude
// (compared case-insensitively). texts maps each title to its first chunk.
func candidateTitles(matches []vector.Match, exclude string) ([]string, map[string]string) {
	var titles []string
	texts := make(map[string]string)
	for _, m := range matches {
		text := m.Text()
		sub := titlePattern.FindStringSubmatch(text)
		if len(sub) < 2 {
			continue
		}
		t := strings.TrimSpace(sub[1])
		if t == "" || strings.EqualFold(t, exclude) {
			continue
		}
		if _, dup := texts[t]; dup {
			continue
		}
		texts[t] = text
		titles = append(titles, t)
	}
	return titles, texts
}

func candidateNames(cs []prompts.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Title
	}
	return out
}

func noOverlap(p prompts.SourceMovie) string {
	return fmt.Sprintf("I found movies in the database but none share genres with %q (%s). Try a broader search.",
		p.Title, strings.Join(p.Genres, ", "))
}

func listTitles(names []string) string {
	var b strings.Builder
	b.WriteString("Here are some movies you might like:")
	for i, n := range names {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, n)
	}
	return b.String()
}

// stringList converts a normalized list column to strings, dropping nulls.
func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
