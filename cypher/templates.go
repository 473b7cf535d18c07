package cypher

import (
	"fmt"
	"strings"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

// LookupLimit caps the rows returned by a single entity lookup.
const LookupLimit = 5

var describeTemplates = map[movie.Label]string{
	movie.LabelMovie: `MATCH (m:Movie {title: $name})
OPTIONAL MATCH (d:Director)-[:DIRECTED]->(m)
OPTIONAL MATCH (a:Actor)-[:ACTED_IN]->(m)
OPTIONAL MATCH (m)-[:BELONGS_TO]->(g:Genre)
OPTIONAL MATCH (m)-[:EXPLORES]->(t:Theme)
OPTIONAL MATCH (m)-[:WON]->(w:Award)
RETURN m.title AS title, m.year AS year,
       collect(DISTINCT d.name) AS directors,
       collect(DISTINCT a.name) AS actors,
       collect(DISTINCT g.name) AS genres,
       collect(DISTINCT t.name) AS themes,
       collect(DISTINCT w {.name, .category}) AS awards`,

	movie.LabelDirector: `MATCH (d:Director {name: $name})-[:DIRECTED]->(m:Movie)
OPTIONAL MATCH (m)-[:BELONGS_TO]->(g:Genre)
OPTIONAL MATCH (m)-[:EXPLORES]->(t:Theme)
OPTIONAL MATCH (m)-[:WON]->(w:Award)
OPTIONAL MATCH (a:Actor)-[:ACTED_IN]->(m)
RETURN d.name AS name,
       collect(DISTINCT m {.title, .year}) AS movies,
       collect(DISTINCT g.name) AS genres,
       collect(DISTINCT t.name) AS themes,
       collect(DISTINCT a.name) AS collaborators,
       collect(DISTINCT w {.name, .category}) AS awards`,

	movie.LabelActor: `MATCH (a:Actor {name: $name})-[:ACTED_IN]->(m:Movie)
OPTIONAL MATCH (d:Director)-[:DIRECTED]->(m)
OPTIONAL MATCH (m)-[:BELONGS_TO]->(g:Genre)
OPTIONAL MATCH (m)-[:EXPLORES]->(t:Theme)
OPTIONAL MATCH (m)-[:WON]->(w:Award)
RETURN a.name AS name,
       collect(DISTINCT m {.title, .year}) AS movies,
       collect(DISTINCT d.name) AS directors,
       collect(DISTINCT g.name) AS genres,
       collect(DISTINCT t.name) AS themes,
       collect(DISTINCT w {.name, .category}) AS awards`,

	movie.LabelGenre: `MATCH (m:Movie)-[:BELONGS_TO]->(g:Genre {name: $name})
OPTIONAL MATCH (d:Director)-[:DIRECTED]->(m)
RETURN g.name AS name,
       collect(DISTINCT m {.title, .year}) AS movies,
       collect(DISTINCT d.name) AS directors`,

	movie.LabelTheme: `MATCH (m:Movie)-[:EXPLORES]->(t:Theme {name: $name})
OPTIONAL MATCH (d:Director)-[:DIRECTED]->(m)
RETURN t.name AS name,
       collect(DISTINCT m {.title, .year}) AS movies,
       collect(DISTINCT d.name) AS directors`,

	movie.LabelAward: `MATCH (m:Movie)-[:WON]->(w:Award {name: $name})
OPTIONAL MATCH (d:Director)-[:DIRECTED]->(m)
RETURN w.name AS name,
       collect(DISTINCT m {.title, .year, category: w.category}) AS movies,
       collect(DISTINCT d.name) AS directors`,
}

// Describe returns the fixed template that gathers every node directly connected
// to the named entity, grouped per connected label.
func Describe(label movie.Label, name string) (Query, error) {
	tmpl, ok := describeTemplates[label]
	if !ok {
		return Query{}, fmt.Errorf("no describe template for label %q", label)
	}
	return newQuery(tmpl, map[string]any{"name": name}), nil
}

// Path returns a shortest-path query between two named entities across any
// relationship, bounded by movie.MaxPathHops.
func Path(fromLabel movie.Label, fromName string, toLabel movie.Label, toName string) (Query, error) {
	if !fromLabel.IsValid() {
		return Query{}, fmt.Errorf("invalid path label %q", fromLabel)
	}
	if !toLabel.IsValid() {
		return Query{}, fmt.Errorf("invalid path label %q", toLabel)
	}
	text := fmt.Sprintf(`MATCH (a:%s {%s: $fromName}), (b:%s {%s: $toName}),
      p = shortestPath((a)-[*..%d]-(b))
RETURN [n IN nodes(p) | {labels: labels(n), name: coalesce(n.name, n.title), year: n.year}] AS pathNodes,
       [r IN relationships(p) | type(r)] AS pathRels`,
		fromLabel, fromLabel.CanonicalProperty(), toLabel, toLabel.CanonicalProperty(), movie.MaxPathHops)
	return newQuery(text, map[string]any{"fromName": fromName, "toName": toName}), nil
}

// ExactMatch finds nodes whose canonical property equals name, ignoring case.
func ExactMatch(label movie.Label, name string) Query {
	return lookup(label, "=", name)
}

// PartialMatch finds nodes whose canonical property contains name, ignoring case.
func PartialMatch(label movie.Label, name string) Query {
	return lookup(label, "CONTAINS", name)
}

func lookup(label movie.Label, op, name string) Query {
	prop := label.CanonicalProperty()
	text := fmt.Sprintf(`MATCH (n:%s)
WHERE toLower(n.%s) %s toLower($name)
RETURN n.%s AS nodeName, labels(n)[0] AS label
ORDER BY nodeName
LIMIT %d`, label, prop, op, prop, LookupLimit)
	return newQuery(text, map[string]any{"name": name})
}

// MovieProfile returns the genres and themes of a movie in one row.
func MovieProfile(title string) Query {
	return newQuery(`MATCH (m:Movie {title: $title})
OPTIONAL MATCH (m)-[:BELONGS_TO]->(g:Genre)
OPTIONAL MATCH (m)-[:EXPLORES]->(t:Theme)
RETURN m.title AS title, collect(DISTINCT g.name) AS genres, collect(DISTINCT t.name) AS themes`,
		map[string]any{"title": title})
}

// SharedGenres keeps the candidate titles that belong to at least one of the
// source genres and returns each with its genres and themes. Rows keep the
// order of $titles; rank is the title's position in it.
func SharedGenres(titles, sourceGenres []string) Query {
	return newQuery(`MATCH (m:Movie)-[:BELONGS_TO]->(g:Genre)
WHERE m.title IN $titles
WITH m, collect(g.name) AS genres
WHERE any(genre IN genres WHERE genre IN $sourceGenres)
WITH m, genres, [i IN range(0, size($titles) - 1) WHERE $titles[i] = m.title][0] AS rank
OPTIONAL MATCH (m)-[:EXPLORES]->(t:Theme)
RETURN m.title AS title, m.year AS year, genres, collect(DISTINCT t.name) AS themes, rank
ORDER BY rank`,
		map[string]any{"titles": titles, "sourceGenres": sourceGenres})
}

// Stats counts nodes and relationships.
func Stats() Query {
	return newQuery(`MATCH (n)
WITH count(n) AS nodes
OPTIONAL MATCH ()-[r]->()
RETURN nodes, count(r) AS relationships`, nil)
}

// Constraints returns the uniqueness constraints the indexer relies on for MERGE.
func Constraints() []Query {
	out := make([]Query, 0, len(movie.Labels))
	for _, l := range movie.Labels {
		if l == movie.LabelAward {
			continue
		}
		name := strings.ToLower(string(l)) + "_" + l.CanonicalProperty()
		out = append(out, newQuery(fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			name, l, l.CanonicalProperty()), nil))
	}
	return out
}
