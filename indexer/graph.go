package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/cinegraph/cypher"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/vocabulary/movie"
)

// progressEvery controls how often build progress is logged.
const progressEvery = 50

// GraphStore is the graph access the builder needs.
type GraphStore interface {
	graph.Reader
	graph.Writer
}

// GraphStats summarises a graph build.
type GraphStats struct {
	Movies        int   `json:"movies"`
	Nodes         int64 `json:"nodes"`
	Relationships int64 `json:"relationships"`
}

// GraphBuilder writes movies into the graph with idempotent MERGE statements.
type GraphBuilder struct {
	store  GraphStore
	logger *slog.Logger
}

// NewGraphBuilder creates a GraphBuilder. A nil logger uses slog.Default().
func NewGraphBuilder(store GraphStore, logger *slog.Logger) *GraphBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphBuilder{store: store, logger: logger}
}

// Build creates the uniqueness constraints and then writes each movie in its
// own transaction.
func (b *GraphBuilder) Build(ctx context.Context, movies []Movie) (GraphStats, error) {
	for _, q := range cypher.Constraints() {
		if err := b.store.ExecuteWrite(ctx, []cypher.Query{q}); err != nil {
			return GraphStats{}, fmt.Errorf("create constraint: %w", err)
		}
	}

	for i, m := range movies {
		qs, err := MovieQueries(m)
		if err != nil {
			return GraphStats{}, err
		}
		if err := b.store.ExecuteWrite(ctx, qs); err != nil {
			return GraphStats{}, fmt.Errorf("write movie %q: %w", m.Title, err)
		}
		if (i+1)%progressEvery == 0 || i == len(movies)-1 {
			b.logger.Info("Graph build progress", "inserted", i+1, "total", len(movies))
		}
	}

	stats := GraphStats{Movies: len(movies)}
	rows, err := b.store.RunRead(ctx, cypher.Stats())
	if err != nil {
		return stats, fmt.Errorf("graph stats: %w", err)
	}
	if len(rows) > 0 {
		stats.Nodes, _ = rows[0]["nodes"].(int64)
		stats.Relationships, _ = rows[0]["relationships"].(int64)
	}
	b.logger.Info("Graph built",
		"movies", stats.Movies,
		"nodes", stats.Nodes,
		"relationships", stats.Relationships)
	return stats, nil
}

// MovieQueries returns the statements that write one movie and its links.
// Blank names are skipped.
func MovieQueries(m Movie) ([]cypher.Query, error) {
	qs := []cypher.Query{cypher.MergeMovie(m.Title, m.Year)}

	links := []struct {
		label movie.Label
		names []string
	}{
		{movie.LabelDirector, m.Directors},
		{movie.LabelActor, m.Actors},
		{movie.LabelGenre, m.Genres},
		{movie.LabelTheme, m.Themes},
	}
	for _, l := range links {
		for _, name := range l.names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			q, err := cypher.MergeLink(l.label, name, m.Title)
			if err != nil {
				return nil, err
			}
			qs = append(qs, q)
		}
	}

	for _, a := range m.Awards {
		if a.Name == "" {
			continue
		}
		qs = append(qs, cypher.MergeAward(a.Name, a.Category, m.Title))
	}
	return qs, nil
}
