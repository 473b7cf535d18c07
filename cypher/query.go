// Package cypher builds parameterized Cypher for the movie graph.
//
// Query text produced here only ever contains vocabulary literals (labels,
// relationship types, properties, operators), fixed variable names and
// validated aggregation aliases. Every caller-supplied value is carried in
// Query.Params and referenced by name.
package cypher

// Query is a compiled Cypher statement with its bound parameters.
type Query struct {
	Text   string
	Params map[string]any
}

func newQuery(text string, params map[string]any) Query {
	if params == nil {
		params = map[string]any{}
	}
	return Query{Text: text, Params: params}
}
