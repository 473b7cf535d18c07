package cypher

import (
	"fmt"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

var linkRelationships = map[movie.Label]movie.Relationship{
	movie.LabelDirector: movie.RelDirected,
	movie.LabelActor:    movie.RelActedIn,
	movie.LabelGenre:    movie.RelBelongsTo,
	movie.LabelTheme:    movie.RelExplores,
}

// MergeMovie upserts a movie node keyed by title.
func MergeMovie(title string, year int) Query {
	params := map[string]any{"title": title, "year": nil}
	if year > 0 {
		params["year"] = int64(year)
	}
	return newQuery(`MERGE (m:Movie {title: $title})
SET m.year = coalesce($year, m.year)`, params)
}

// MergeLink upserts a named node and links it to a movie. The relationship and its
// direction follow the vocabulary for the label.
func MergeLink(label movie.Label, name, title string) (Query, error) {
	rel, ok := linkRelationships[label]
	if !ok {
		return Query{}, fmt.Errorf("no movie link for label %q", label)
	}
	e, _ := rel.Endpoints()
	v := label.Var()
	from, to := v, "m"
	if e.From == movie.LabelMovie {
		from, to = "m", v
	}
	text := fmt.Sprintf(`MERGE (%s:%s {name: $name})
MERGE (m:Movie {title: $title})
MERGE (%s)-[:%s]->(%s)`, v, label, from, rel, to)
	return newQuery(text, map[string]any{"name": name, "title": title}), nil
}

// MergeAward upserts an award keyed by name and category and links the movie to it.
func MergeAward(name, category, title string) Query {
	return newQuery(`MERGE (w:Award {name: $name, category: $category})
MERGE (m:Movie {title: $title})
MERGE (m)-[:WON]->(w)`, map[string]any{"name": name, "category": category, "title": title})
}
