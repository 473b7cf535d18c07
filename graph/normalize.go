package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func recordRow(keys []string, values []any) Row {
	row := make(Row, len(keys))
	for i, k := range keys {
		if i < len(values) {
			row[k] = Normalize(values[i])
		}
	}
	return row
}

// Normalize converts driver values into plain Go values: nodes and
// relationships become property maps, paths become node and relationship
// lists, temporal values become strings, and all numbers become int64 or
// float64. Collections are converted recursively.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case dbtype.Node:
		props := Normalize(x.Props).(map[string]any)
		return map[string]any{"labels": toAny(x.Labels), "properties": props}
	case dbtype.Relationship:
		props := Normalize(x.Props).(map[string]any)
		return map[string]any{"type": x.Type, "properties": props}
	case dbtype.Path:
		nodes := make([]any, len(x.Nodes))
		for i, n := range x.Nodes {
			nodes[i] = Normalize(n)
		}
		rels := make([]any, len(x.Relationships))
		for i, r := range x.Relationships {
			rels[i] = Normalize(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case dbtype.Date:
		return time.Time(x).Format(time.DateOnly)
	case dbtype.LocalDateTime:
		return time.Time(x).Format("2006-01-02T15:04:05")
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return x
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
