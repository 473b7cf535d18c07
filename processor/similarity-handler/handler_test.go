package similarityhandler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/cinegraph/cypher"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/llm/testutil"
	"github.com/c360studio/cinegraph/model"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	"github.com/c360studio/cinegraph/vector"
	"github.com/c360studio/cinegraph/vocabulary/movie"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	matches []vector.Match
	err     error
	topK    []int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]vector.Match, error) {
	f.topK = append(f.topK, topK)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

// fakeGraph serves MovieProfile and SharedGenres from an in-memory catalogue.
type fakeGraph struct {
	genres   map[string][]string
	themes   map[string][]string
	err      error
	shared   []cypher.Query
	reversed bool // return cross-check rows in reverse candidate order
}

func (f *fakeGraph) RunRead(_ context.Context, q cypher.Query) ([]graph.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	if source, ok := q.Params["sourceGenres"].([]string); ok {
		f.shared = append(f.shared, q)
		var rows []graph.Row
		for _, title := range q.Params["titles"].([]string) {
			genres, known := f.genres[title]
			if !known || !slices.ContainsFunc(genres, func(g string) bool { return slices.Contains(source, g) }) {
				continue
			}
			rows = append(rows, graph.Row{"title": title, "genres": toAny(genres), "themes": toAny(f.themes[title])})
		}
		if f.reversed {
			slices.Reverse(rows)
		}
		return rows, nil
	}

	title := q.Params["title"].(string)
	genres, known := f.genres[title]
	if !known {
		return nil, nil
	}
	return []graph.Row{{"title": title, "genres": toAny(genres), "themes": toAny(f.themes[title])}}, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func chunk(title, body string) vector.Match {
	return vector.Match{
		ID:       title,
		Metadata: map[string]any{"text": fmt.Sprintf("Movie Title: %s\n%s", title, body)},
	}
}

func catalogue() *fakeGraph {
	return &fakeGraph{
		genres: map[string][]string{
			"Inception":      {"Sci-Fi", "Thriller"},
			"Interstellar":   {"Sci-Fi", "Drama"},
			"The Matrix":     {"Sci-Fi", "Action"},
			"Notting Hill":   {"Romance", "Comedy"},
			"Shutter Island": {"Thriller", "Mystery"},
			"Untitled":       {},
		},
		themes: map[string][]string{
			"Inception": {"dreams", "reality"},
		},
	}
}

func inceptionResult() entityresolver.Result {
	return entityresolver.Result{
		Entities: []entityresolver.ResolvedEntity{
			{SearchTerm: "Inception", Label: movie.LabelMovie, NodeName: "Inception", MatchType: entityresolver.MatchExact},
		},
	}
}

func ranker(answer string) *testutil.MockLLMClient {
	return &testutil.MockLLMClient{
		Responses: []*llm.Response{{Content: answer, Model: "test-model"}},
	}
}

func TestHandle_GenreCrossCheck(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		chunk("Inception", "A thief who steals secrets through dreams."),
		chunk("Notting Hill", "A bookshop owner falls for a film star."),
		chunk("Interstellar", "Explorers travel through a wormhole."),
		chunk("The Matrix", "A hacker learns reality is simulated."),
		chunk("Interstellar", "Second chunk for the same film."),
		chunk("Shutter Island", "A marshal investigates an asylum."),
		{ID: "no-title", Metadata: map[string]any{"text": "Plot summary without a header"}},
	}}
	emb := &fakeEmbedder{}
	fg := catalogue()
	mock := ranker("1. Interstellar - also about time and space.")
	h := New(mock, fg, emb, idx)

	answer, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
	require.NoError(t, err)
	assert.Equal(t, "1. Interstellar - also about time and space.", answer)

	assert.Equal(t, []string{"Inception"}, emb.texts, "the canonical title is embedded")
	assert.Equal(t, []int{DefaultTopK}, idx.topK)

	require.Len(t, fg.shared, 1)
	assert.Equal(t, []string{"Notting Hill", "Interstellar", "The Matrix", "Shutter Island"}, fg.shared[0].Params["titles"])
	assert.Equal(t, []string{"Sci-Fi", "Thriller"}, fg.shared[0].Params["sourceGenres"])

	req := mock.Requests()[0]
	assert.Equal(t, model.CapabilityRecommending, req.Capability)
	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "Interstellar")
	assert.Contains(t, prompt, "The Matrix")
	assert.Contains(t, prompt, "Shutter Island")
	assert.Contains(t, prompt, "Explorers travel through a wormhole.")
	assert.Contains(t, prompt, "dreams, reality")
	assert.NotContains(t, prompt, "Notting Hill", "disjoint genres are dropped")
	assert.Contains(t, prompt, "Here are 3 movies")
}

func TestHandle_KeepsVectorOrder(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		chunk("Shutter Island", "A marshal investigates an asylum."),
		chunk("Interstellar", "Explorers travel through a wormhole."),
		chunk("The Matrix", "A hacker learns reality is simulated."),
	}}
	fg := catalogue()
	fg.reversed = true
	mock := ranker("1. Shutter Island")
	h := New(mock, fg, &fakeEmbedder{}, idx)

	_, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
	require.NoError(t, err)

	prompt := mock.Requests()[0].Messages[1].Content
	shutter := strings.Index(prompt, "Shutter Island")
	interstellar := strings.Index(prompt, "Interstellar")
	matrix := strings.Index(prompt, "The Matrix")
	require.True(t, shutter >= 0 && interstellar >= 0 && matrix >= 0, prompt)
	assert.Less(t, shutter, interstellar)
	assert.Less(t, interstellar, matrix)
}

func TestHandle_NoSharedGenres(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		chunk("Notting Hill", "Romance in London."),
	}}
	mock := ranker("should not be used")
	h := New(mock, catalogue(), &fakeEmbedder{}, idx)

	answer, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
	require.NoError(t, err)
	assert.Contains(t, answer, `none share genres with "Inception" (Sci-Fi, Thriller)`)
	assert.Zero(t, mock.GetCallCount())
}

func TestHandle_NoMovieEntityFallsBack(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		chunk("The Matrix", "A hacker learns reality is simulated."),
		chunk("Inception", "Dreams within dreams."),
	}}
	emb := &fakeEmbedder{}
	fg := catalogue()
	mock := ranker("1. The Matrix")
	h := New(mock, fg, emb, idx)

	res := entityresolver.Result{Entities: []entityresolver.ResolvedEntity{
		{SearchTerm: "sci-fi", Label: movie.LabelGenre, NodeName: "Sci-Fi", MatchType: entityresolver.MatchExact},
	}}
	answer, err := h.Handle(context.Background(), "Recommend something like a mind-bending sci-fi", res)
	require.NoError(t, err)
	assert.Equal(t, "1. The Matrix", answer)

	assert.Equal(t, []string{"Recommend something like a mind-bending sci-fi"}, emb.texts)
	assert.Equal(t, []int{DefaultFallbackTopK}, idx.topK)
	assert.Empty(t, fg.shared, "fallback skips the genre cross-check")

	prompt := mock.Requests()[0].Messages[1].Content
	assert.Contains(t, prompt, "--- Movie 1 ---")
	assert.Contains(t, prompt, "Here are 2 movies")
	assert.Equal(t, FallbackStage, llm.GetTraceContext(mock.GetCapturedContext()).Stage)
}

func TestHandle_SourceWithoutGenresFallsBack(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{chunk("The Matrix", "Simulated reality.")}}
	emb := &fakeEmbedder{}
	h := New(ranker("1. The Matrix"), catalogue(), emb, idx)

	res := entityresolver.Result{Entities: []entityresolver.ResolvedEntity{
		{SearchTerm: "Untitled", Label: movie.LabelMovie, NodeName: "Untitled", MatchType: entityresolver.MatchExact},
	}}
	_, err := h.Handle(context.Background(), "Movies like Untitled", res)
	require.NoError(t, err)
	assert.Equal(t, []string{"Untitled", "Movies like Untitled"}, emb.texts)
	assert.Equal(t, []int{DefaultTopK, DefaultFallbackTopK}, idx.topK)
}

func TestHandle_NoMatches(t *testing.T) {
	mock := ranker("unused")
	h := New(mock, catalogue(), &fakeEmbedder{}, &fakeIndex{})

	answer, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any similar movies.", answer)

	answer, err = h.Handle(context.Background(), "Something fun", entityresolver.Result{})
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any matching movies.", answer)
	assert.Zero(t, mock.GetCallCount())
}

func TestHandle_RankerFailureListsCandidates(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		chunk("Interstellar", "Wormholes."),
		chunk("The Matrix", "Simulation."),
	}}
	h := New(&testutil.MockLLMClient{Err: errors.New("model down")}, catalogue(), &fakeEmbedder{}, idx)

	answer, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
	require.NoError(t, err)
	assert.Equal(t, "Here are some movies you might like:\n1. Interstellar\n2. The Matrix", answer)
}

func TestHandle_CollaboratorErrors(t *testing.T) {
	t.Run("embedder", func(t *testing.T) {
		h := New(ranker(""), catalogue(), &fakeEmbedder{err: errors.New("quota")}, &fakeIndex{})
		_, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
		require.ErrorContains(t, err, "quota")
	})
	t.Run("index", func(t *testing.T) {
		h := New(ranker(""), catalogue(), &fakeEmbedder{}, &fakeIndex{err: errors.New("index unavailable")})
		_, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
		require.ErrorContains(t, err, "index unavailable")
	})
	t.Run("graph", func(t *testing.T) {
		idx := &fakeIndex{matches: []vector.Match{chunk("The Matrix", "Simulation.")}}
		h := New(ranker(""), &fakeGraph{err: errors.New("neo4j down")}, &fakeEmbedder{}, idx)
		_, err := h.Handle(context.Background(), "Movies like Inception", inceptionResult())
		require.ErrorContains(t, err, "neo4j down")
	})
}

func TestCandidateTitles(t *testing.T) {
	matches := []vector.Match{
		{Metadata: map[string]any{"text": "movie title:   Heat  \nDirector: Michael Mann"}},
		{Metadata: map[string]any{"text": "Movie Title: INCEPTION\nplot"}},
		{Metadata: map[string]any{"text": "Movie Title: Heat\nanother chunk"}},
		{Metadata: map[string]any{"other": "field"}},
	}

	titles, texts := candidateTitles(matches, "Inception")
	assert.Equal(t, []string{"Heat"}, titles)
	assert.Equal(t, "movie title:   Heat  \nDirector: Michael Mann", texts["Heat"])
}
