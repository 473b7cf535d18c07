package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

// PlanningSystemPrompt asks for a JSON query plan. The schema section is
// generated from the vocabulary so the prompt never drifts from the validator.
func PlanningSystemPrompt(g Grounding) string {
	return fmt.Sprintf(`You are a query planner for a movie knowledge graph.

## Resolved Entities

Already verified in the database:
%s

IMPORTANT: Use the exact names from above in filter values and in describe/path steps.
If "Nolan" resolved to Director "Christopher Nolan", use "Christopher Nolan", not "Nolan".

## Graph Schema

%s

## Step Types

Output a JSON plan using ONLY these step types:

1. "traversal": {"type":"traversal","from":"Label","rel":"RELATIONSHIP","to":"Label"}
2. "filter": {"type":"filter","field":"Label.property","op":"=","value":"some value"}
   Operators: %s
3. "projection": {"type":"projection","fields":["Label.property"],"distinct":true}
4. "aggregation": {"type":"aggregation","function":"count","field":"Label.property","alias":"name","groupBy":"Label.property"}
   Functions: %s
5. "sort": {"type":"sort","field":"Label.property or aggregation alias","direction":"ASC"}
   Directions: ASC, DESC
6. "limit": {"type":"limit","value":10}
   Value between %d and %d
7. "describe": {"type":"describe","label":"Label","name":"exact node name"}
   Use when the user asks "tell me about X" or "who is X".
8. "path": {"type":"path","fromLabel":"Label","fromName":"name","toLabel":"Label","toName":"name"}
   Use when the user asks how two entities are related.

## Rules

- Award.name is the award (e.g. "Oscar"), Award.category is the category (e.g. "Best Picture")
- Always include a projection or aggregation step unless using describe or path
- A describe or path step must be the only step in the plan
- At most one sort step and one limit step
- Output ONLY valid JSON. No markdown, no backticks.

## Examples

"Movies directed by Christopher Nolan":
{"steps":[
  {"type":"traversal","from":"Director","rel":"DIRECTED","to":"Movie"},
  {"type":"filter","field":"Director.name","op":"=","value":"Christopher Nolan"},
  {"type":"projection","fields":["Movie.title","Movie.year"],"distinct":true}
]}

"Action movies with Tom Hardy":
{"steps":[
  {"type":"traversal","from":"Actor","rel":"ACTED_IN","to":"Movie"},
  {"type":"traversal","from":"Movie","rel":"BELONGS_TO","to":"Genre"},
  {"type":"filter","field":"Actor.name","op":"=","value":"Tom Hardy"},
  {"type":"filter","field":"Genre.name","op":"=","value":"Action"},
  {"type":"projection","fields":["Movie.title","Movie.year"],"distinct":true}
]}

"Which directors made the most sci-fi movies?":
{"steps":[
  {"type":"traversal","from":"Director","rel":"DIRECTED","to":"Movie"},
  {"type":"traversal","from":"Movie","rel":"BELONGS_TO","to":"Genre"},
  {"type":"filter","field":"Genre.name","op":"=","value":"Sci-Fi"},
  {"type":"aggregation","function":"count","field":"Movie.title","alias":"movie_count","groupBy":"Director.name"},
  {"type":"sort","field":"movie_count","direction":"DESC"},
  {"type":"limit","value":5}
]}

"Tell me about Inception":
{"steps":[{"type":"describe","label":"Movie","name":"Inception"}]}

"How is Leonardo DiCaprio related to Christopher Nolan?":
{"steps":[{"type":"path","fromLabel":"Actor","fromName":"Leonardo DiCaprio","toLabel":"Director","toName":"Christopher Nolan"}]}`,
		g.PlannerContext(),
		SchemaDescription(),
		joinQuoted(movie.Operators),
		joinQuoted(movie.Aggregations),
		movie.MinLimit, movie.MaxLimit)
}

// PlanCorrectionPrompt is sent after a reply that could not be parsed as a plan.
func PlanCorrectionPrompt(parseErr string) string {
	return fmt.Sprintf(`Your previous reply could not be parsed as a plan (%s).
Reply again with ONLY the JSON object {"steps": [...]}. No prose, no markdown.`, parseErr)
}

// SchemaDescription lists nodes with their properties and relationships with
// their endpoints.
func SchemaDescription() string {
	nodes := make([]string, 0, len(movie.Labels))
	for _, l := range movie.Labels {
		nodes = append(nodes, fmt.Sprintf("%s(%s)", l, strings.Join(l.Properties(), ",")))
	}
	rels := make([]string, 0, len(movie.Relationships))
	for _, r := range movie.Relationships {
		ep, _ := r.Endpoints()
		rels = append(rels, fmt.Sprintf("%s-[:%s]->%s", ep.From, r, ep.To))
	}
	return "Nodes: " + strings.Join(nodes, ", ") + "\nRelationships: " + strings.Join(rels, ", ")
}

func joinQuoted[T ~string](items []T) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it)
	}
	return strings.Join(out, ", ")
}
