// Package plan defines the whitelisted query plan language produced by the planner
// model and the validator that guards it.
//
// A plan is an ordered list of typed steps. Only values from the movie vocabulary
// may appear in label, relationship, property, operator, function and direction
// positions; anything else is rejected with an InvalidPlanError before a single
// query clause is produced.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// StepType discriminates plan steps.
type StepType string

const (
	StepTraversal   StepType = "traversal"
	StepFilter      StepType = "filter"
	StepProjection  StepType = "projection"
	StepAggregation StepType = "aggregation"
	StepSort        StepType = "sort"
	StepLimit       StepType = "limit"
	StepDescribe    StepType = "describe"
	StepPath        StepType = "path"
)

// IsLookup reports whether the step kind runs a dedicated lookup template
// rather than going through the generic compiler.
func (t StepType) IsLookup() bool {
	return t == StepDescribe || t == StepPath
}

// Step is one plan operation. Which fields are meaningful depends on Type:
//
//	traversal   From, Rel, To
//	filter      Field, Op, Value
//	projection  Fields, Distinct
//	aggregation Function, Field (optional), Alias (optional), GroupBy (optional)
//	sort        Field, Direction
//	limit       Value
//	describe    Label, Name
//	path        FromLabel, FromName, ToLabel, ToName
type Step struct {
	Type StepType `json:"type"`

	From string `json:"from,omitempty"`
	Rel  string `json:"rel,omitempty"`
	To   string `json:"to,omitempty"`

	Field string `json:"field,omitempty"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	Fields   []string `json:"fields,omitempty"`
	Distinct bool     `json:"distinct,omitempty"`

	Function string `json:"function,omitempty"`
	Alias    string `json:"alias,omitempty"`
	GroupBy  string `json:"groupBy,omitempty"`

	Direction string `json:"direction,omitempty"`

	Label string `json:"label,omitempty"`
	Name  string `json:"name,omitempty"`

	FromLabel string `json:"fromLabel,omitempty"`
	FromName  string `json:"fromName,omitempty"`
	ToLabel   string `json:"toLabel,omitempty"`
	ToName    string `json:"toName,omitempty"`
}

// Plan is an ordered list of steps.
type Plan struct {
	Steps []Step `json:"steps"`
}

// IsLookup reports whether every step is a describe or path step.
func (p Plan) IsLookup() bool {
	if len(p.Steps) == 0 {
		return false
	}
	for _, s := range p.Steps {
		if !s.Type.IsLookup() {
			return false
		}
	}
	return true
}

// Parse decodes a plan from JSON. Numbers are kept as json.Number so integral
// values survive decoding without float rounding.
func Parse(data []byte) (Plan, error) {
	var p struct {
		Steps *[]Step `json:"steps"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if p.Steps == nil {
		return Plan{}, fmt.Errorf("decode plan: missing steps")
	}
	return Plan{Steps: *p.Steps}, nil
}

// IntValue returns v as an integer when it is an integral number.
func IntValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return IntValue(f)
	default:
		return 0, false
	}
}

// ScalarValue normalizes a filter value into a type the graph driver accepts.
// Integral numbers become int64, other numbers float64. Strings and booleans
// pass through. Anything else is reported as not scalar.
func ScalarValue(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool:
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, false
		}
		return ScalarValue(f)
	case float64:
		if i, ok := IntValue(x); ok {
			return i, true
		}
		return x, true
	case float32:
		return ScalarValue(float64(x))
	case int, int32, int64:
		i, _ := IntValue(x)
		return i, true
	default:
		return nil, false
	}
}
