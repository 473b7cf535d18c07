package graph

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "Inception", "Inception"},
		{"int", 7, int64(7)},
		{"int32", int32(7), int64(7)},
		{"float32", float32(1.5), 1.5},
		{
			name: "nested list",
			in:   []any{int64(1), []any{"a", 2}},
			want: []any{int64(1), []any{"a", int64(2)}},
		},
		{
			name: "path node map",
			in:   map[string]any{"labels": []any{"Movie"}, "name": "Heat", "year": int64(1995)},
			want: map[string]any{"labels": []any{"Movie"}, "name": "Heat", "year": int64(1995)},
		},
		{
			name: "node",
			in:   dbtype.Node{Labels: []string{"Director"}, Props: map[string]any{"name": "Michael Mann"}},
			want: map[string]any{"labels": []any{"Director"}, "properties": map[string]any{"name": "Michael Mann"}},
		},
		{
			name: "relationship",
			in:   dbtype.Relationship{Type: "DIRECTED", Props: map[string]any{}},
			want: map[string]any{"type": "DIRECTED", "properties": map[string]any{}},
		},
		{
			name: "date",
			in:   dbtype.Date(time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)),
			want: "2010-07-16",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	p := dbtype.Path{
		Nodes: []dbtype.Node{
			{Labels: []string{"Actor"}, Props: map[string]any{"name": "Tom Hardy"}},
			{Labels: []string{"Movie"}, Props: map[string]any{"title": "Inception"}},
		},
		Relationships: []dbtype.Relationship{{Type: "ACTED_IN", Props: map[string]any{}}},
	}
	got := Normalize(p).(map[string]any)
	assert.Len(t, got["nodes"], 2)
	assert.Len(t, got["relationships"], 1)
}

func TestRecordRow(t *testing.T) {
	row := recordRow([]string{"title", "year"}, []any{"Heat", 1995})
	assert.Equal(t, Row{"title": "Heat", "year": int64(1995)}, row)
}
