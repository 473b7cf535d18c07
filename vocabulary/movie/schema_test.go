package movie_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

func TestLabels(t *testing.T) {
	assert.Len(t, movie.Labels, 6)
	for _, l := range movie.Labels {
		assert.True(t, l.IsValid(), l)
		assert.NotEmpty(t, l.Var(), l)
		assert.True(t, l.HasProperty(l.CanonicalProperty()), l)
	}
	assert.False(t, movie.Label("Person").IsValid())
	assert.Empty(t, movie.Label("Person").Var())
}

func TestLabelVarsAreDistinct(t *testing.T) {
	seen := map[string]movie.Label{}
	for _, l := range movie.Labels {
		if other, ok := seen[l.Var()]; ok {
			t.Fatalf("%s and %s share variable %q", l, other, l.Var())
		}
		seen[l.Var()] = l
	}
}

func TestRelationshipEndpoints(t *testing.T) {
	tests := []struct {
		rel  movie.Relationship
		from movie.Label
		to   movie.Label
	}{
		{movie.RelDirected, movie.LabelDirector, movie.LabelMovie},
		{movie.RelActedIn, movie.LabelActor, movie.LabelMovie},
		{movie.RelBelongsTo, movie.LabelMovie, movie.LabelGenre},
		{movie.RelExplores, movie.LabelMovie, movie.LabelTheme},
		{movie.RelWon, movie.LabelMovie, movie.LabelAward},
	}
	for _, tc := range tests {
		t.Run(string(tc.rel), func(t *testing.T) {
			e, ok := tc.rel.Endpoints()
			assert.True(t, ok)
			assert.Equal(t, tc.from, e.From)
			assert.Equal(t, tc.to, e.To)
		})
	}
	_, ok := movie.Relationship("FRIEND_OF").Endpoints()
	assert.False(t, ok)
}

func TestProperties(t *testing.T) {
	assert.Equal(t, []string{"title", "year"}, movie.LabelMovie.Properties())
	assert.Equal(t, []string{"name", "category"}, movie.LabelAward.Properties())
	assert.False(t, movie.LabelDirector.HasProperty("title"))

	// Returned slices are copies.
	props := movie.LabelMovie.Properties()
	props[0] = "plot"
	assert.True(t, movie.LabelMovie.HasProperty("title"))
}

func TestParseField(t *testing.T) {
	tests := []struct {
		field string
		label movie.Label
		prop  string
		ok    bool
	}{
		{"Movie.title", movie.LabelMovie, "title", true},
		{"Award.category", movie.LabelAward, "category", true},
		{"title", "title", "", false},
		{".title", "", "title", false},
		{"Movie.", "Movie", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			label, prop, ok := movie.ParseField(tc.field)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.label, label)
			assert.Equal(t, tc.prop, prop)
		})
	}
}

func TestOperatorsAndAggregations(t *testing.T) {
	assert.True(t, movie.OpStartsWith.IsValid())
	assert.False(t, movie.Operator("starts with").IsValid())
	assert.False(t, movie.Operator("=~").IsValid())
	assert.True(t, movie.AggCollect.IsValid())
	assert.False(t, movie.Aggregation("stdev").IsValid())
}

func TestParseDirection(t *testing.T) {
	d, ok := movie.ParseDirection("desc")
	assert.True(t, ok)
	assert.Equal(t, movie.Desc, d)

	d, ok = movie.ParseDirection(" Asc ")
	assert.True(t, ok)
	assert.Equal(t, movie.Asc, d)

	_, ok = movie.ParseDirection("sideways")
	assert.False(t, ok)
}
