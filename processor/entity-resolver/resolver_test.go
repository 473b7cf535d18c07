package entityresolver

import (
	"context"
	"errors"
	"sort"
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
	"github.com/c360studio/cinegraph/vocabulary/movie"
)

// fakeGraph answers the lookup queries from an in-memory node list.
type fakeGraph struct {
	mu    sync.Mutex
	nodes map[movie.Label][]string
	err   error
	calls []cypher.Query
}

func (f *fakeGraph) RunRead(_ context.Context, q cypher.Query) ([]graph.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	label := labelOf(q.Text)
	name := strings.ToLower(q.Params["name"].(string))
	partial := strings.Contains(q.Text, "CONTAINS")

	var names []string
	for _, n := range f.nodes[label] {
		lower := strings.ToLower(n)
		if lower == name || (partial && strings.Contains(lower, name)) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if len(names) > cypher.LookupLimit {
		names = names[:cypher.LookupLimit]
	}

	rows := make([]graph.Row, 0, len(names))
	for _, n := range names {
		rows = append(rows, graph.Row{"nodeName": n, "label": string(label)})
	}
	return rows, nil
}

func (f *fakeGraph) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func labelOf(text string) movie.Label {
	_, rest, _ := strings.Cut(text, "(n:")
	label, _, _ := strings.Cut(rest, ")")
	return movie.Label(label)
}

func testNodes() map[movie.Label][]string {
	return map[movie.Label][]string{
		movie.LabelMovie:    {"Inception", "Interstellar", "The Dark Knight"},
		movie.LabelDirector: {"Christopher Nolan", "James Cameron", "Tom Hardy"},
		movie.LabelActor:    {"Tom Hardy", "Leonardo DiCaprio"},
		movie.LabelGenre:    {"Sci-Fi", "Action", "Thriller"},
		movie.LabelTheme:    {"dreams", "time"},
		movie.LabelAward:    {"Oscar"},
	}
}

func extraction(content string) *testutil.MockLLMClient {
	return &testutil.MockLLMClient{
		Responses: []*llm.Response{{Content: content, Model: "test-model"}},
	}
}

func TestResolveEntity_PartialMatch(t *testing.T) {
	r := New(nil, &fakeGraph{nodes: testNodes()})

	got, err := r.ResolveEntity(context.Background(), "Nolan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ResolvedEntity{
		SearchTerm: "Nolan",
		Label:      movie.LabelDirector,
		NodeName:   "Christopher Nolan",
		MatchType:  MatchPartial,
	}, got[0])
}

func TestResolveEntity_ExactWinsOverPartial(t *testing.T) {
	nodes := testNodes()
	nodes[movie.LabelMovie] = append(nodes[movie.LabelMovie], "Christopher Nolan: A Documentary")
	r := New(nil, &fakeGraph{nodes: nodes})

	got, err := r.ResolveEntity(context.Background(), "christopher nolan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, movie.LabelDirector, got[0].Label)
	assert.Equal(t, "Christopher Nolan", got[0].NodeName)
	assert.Equal(t, MatchExact, got[0].MatchType)
}

func TestResolveEntity_AmbiguousName(t *testing.T) {
	r := New(nil, &fakeGraph{nodes: testNodes()})

	got, err := r.ResolveEntity(context.Background(), "Tom Hardy")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, movie.LabelDirector, got[0].Label)
	assert.Equal(t, movie.LabelActor, got[1].Label)
	for _, e := range got {
		assert.Equal(t, MatchExact, e.MatchType)
	}
}

func TestResolveEntity_SkipsPartialForExactLabel(t *testing.T) {
	fg := &fakeGraph{nodes: testNodes()}
	r := New(nil, fg)

	_, err := r.ResolveEntity(context.Background(), "Inception")
	require.NoError(t, err)

	for _, q := range fg.calls {
		if labelOf(q.Text) == movie.LabelMovie {
			assert.NotContains(t, q.Text, "CONTAINS", "movie label matched exactly, no substring search expected")
		}
	}
	// one exact lookup for Movie, exact + partial for the other five labels
	assert.Len(t, fg.calls, 1+2*(len(movie.Labels)-1))
}

func TestResolveEntity_GraphError(t *testing.T) {
	r := New(nil, &fakeGraph{err: errors.New("connection refused")})

	_, err := r.ResolveEntity(context.Background(), "Nolan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestResolve(t *testing.T) {
	mock := extraction(`["Nolan", "Zorblax", "Sci-Fi"]`)
	r := New(mock, &fakeGraph{nodes: testNodes()})

	res, err := r.Resolve(context.Background(), "Sci-Fi movies by Nolan and Zorblax")
	require.NoError(t, err)

	assert.Equal(t, "Sci-Fi movies by Nolan and Zorblax", res.Query)
	assert.Equal(t, []string{"Zorblax"}, res.Unresolved)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "Christopher Nolan", res.Entities[0].NodeName)
	assert.Equal(t, "Sci-Fi", res.Entities[1].NodeName)
	assert.Equal(t, MatchExact, res.Entities[1].MatchType)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.CapabilityExtraction, reqs[0].Capability)
	require.NotNil(t, reqs[0].Temperature)
	assert.Zero(t, *reqs[0].Temperature)
	assert.Equal(t, Stage, llm.GetTraceContext(mock.GetCapturedContext()).Stage)
}

func TestResolve_KeepsCandidateOrderUnderConcurrency(t *testing.T) {
	mock := extraction(`["time", "Oscar", "Action", "DiCaprio", "Interstellar", "Cameron"]`)
	r := New(mock, &fakeGraph{nodes: testNodes()}, WithConcurrency(3))

	res, err := r.Resolve(context.Background(), "q")
	require.NoError(t, err)

	var names []string
	for _, e := range res.Entities {
		names = append(names, e.NodeName)
	}
	assert.Equal(t, []string{"time", "Oscar", "Action", "Leonardo DiCaprio", "Interstellar", "James Cameron"}, names)
}

func TestResolve_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		mock *testutil.MockLLMClient
	}{
		{"prose reply", extraction("I could not find any entities.")},
		{"broken array", extraction(`["Nolan", `)},
		{"empty array", extraction(`[]`)},
		{"transport error", &testutil.MockLLMClient{Err: errors.New("all endpoints failed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := &fakeGraph{nodes: testNodes()}
			r := New(tt.mock, fg)

			res, err := r.Resolve(context.Background(), "What should I watch tonight?")
			require.NoError(t, err)
			assert.Empty(t, res.Entities)
			assert.Empty(t, res.Unresolved)
			assert.Zero(t, fg.callCount(), "no lookups without candidates")
		})
	}
}

func TestResolve_GraphErrorFails(t *testing.T) {
	r := New(extraction(`["Nolan"]`), &fakeGraph{err: errors.New("boom")})

	_, err := r.Resolve(context.Background(), "Movies by Nolan")
	require.Error(t, err)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain", `["Christopher Nolan"]`, []string{"Christopher Nolan"}},
		{"fenced", "```json\n[\"Action\", \"Tom Hardy\"]\n```", []string{"Action", "Tom Hardy"}},
		{"case duplicates", `["Nolan", "nolan", " Nolan "]`, []string{"Nolan"}},
		{"non strings dropped", `["Inception", 42, null, ""]`, []string{"Inception"}},
		{"prose around array", "Here you go:\n[\"Inception\"]\nHope that helps.", []string{"Inception"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(extraction(tt.content), &fakeGraph{})
			assert.Equal(t, tt.want, r.Extract(context.Background(), "q"))
		})
	}
}

func TestResultGrounding(t *testing.T) {
	res := Result{
		Entities: []ResolvedEntity{
			{SearchTerm: "Nolan", Label: movie.LabelDirector, NodeName: "Christopher Nolan", MatchType: MatchPartial},
		},
		Unresolved: []string{"Zorblax"},
	}

	g := res.Grounding()
	assert.Contains(t, g.ClassifierContext(), `"Nolan" is a Director (full name: "Christopher Nolan")`)
	assert.Contains(t, g.ClassifierContext(), "Zorblax")

	e, ok := res.FirstOfLabel(movie.LabelDirector)
	assert.True(t, ok)
	assert.Equal(t, "Christopher Nolan", e.NodeName)
	_, ok = res.FirstOfLabel(movie.LabelMovie)
	assert.False(t, ok)
}
