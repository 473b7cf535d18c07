package movie

import "strings"

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq         Operator = "="
	OpNeq        Operator = "<>"
	OpGt         Operator = ">"
	OpLt         Operator = "<"
	OpGte        Operator = ">="
	OpLte        Operator = "<="
	OpContains   Operator = "CONTAINS"
	OpStartsWith Operator = "STARTS WITH"
)

// Operators lists every accepted filter operator.
var Operators = []Operator{OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpContains, OpStartsWith}

// IsValid reports whether o is an accepted operator. Matching is exact.
func (o Operator) IsValid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Aggregation is an aggregation function name.
type Aggregation string

const (
	AggCount   Aggregation = "count"
	AggCollect Aggregation = "collect"
	AggSum     Aggregation = "sum"
	AggAvg     Aggregation = "avg"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
)

// Aggregations lists every accepted aggregation function.
var Aggregations = []Aggregation{AggCount, AggCollect, AggSum, AggAvg, AggMin, AggMax}

// IsValid reports whether a is an accepted aggregation function.
func (a Aggregation) IsValid() bool {
	for _, agg := range Aggregations {
		if agg == a {
			return true
		}
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection normalizes a direction case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Asc:
		return Asc, true
	case Desc:
		return Desc, true
	default:
		return "", false
	}
}

// Limit bounds, inclusive.
const (
	MinLimit = 1
	MaxLimit = 100
)

// MaxPathHops bounds shortest-path searches.
const MaxPathHops = 6
