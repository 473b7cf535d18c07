package cypher

import (
	"fmt"
	"strings"

	"github.com/c360studio/cinegraph/plan"
	"github.com/c360studio/cinegraph/vocabulary/movie"
)

// Compile validates p and translates it into a read-only query.
//
// Clauses are assembled in a fixed order: traversal MATCH clauses, MATCH clauses
// for labels referenced but not bound by a traversal, one AND-joined WHERE, the
// RETURN clause, ORDER BY and LIMIT. Filter values are bound as p0, p1, ... in
// step order. Describe and path steps are not compilable; use Describe and Path.
func Compile(p plan.Plan) (Query, error) {
	if err := plan.ValidatePlan(p); err != nil {
		return Query{}, err
	}

	c := &compiler{
		traversed:  map[movie.Label]bool{},
		referenced: map[movie.Label]bool{},
		params:     map[string]any{},
	}
	for _, s := range p.Steps {
		if err := c.step(s); err != nil {
			return Query{}, err
		}
	}
	if len(c.columns) == 0 {
		return Query{}, &plan.InvalidPlanError{Reason: "Plan has no projection or aggregation"}
	}
	return newQuery(c.assemble(), c.params), nil
}

type compiler struct {
	matches    []string
	traversed  map[movie.Label]bool
	referenced map[movie.Label]bool
	refOrder   []movie.Label
	conditions []string
	params     map[string]any
	columns    []string
	distinct   bool
	aliases    map[string]bool
	order      string
	limit      string
}

func (c *compiler) step(s plan.Step) error {
	switch s.Type {
	case plan.StepTraversal:
		c.traversal(movie.Label(s.From), movie.Relationship(s.Rel), movie.Label(s.To))

	case plan.StepFilter:
		ref := c.field(s.Field)
		name := fmt.Sprintf("p%d", len(c.params))
		v, _ := plan.ScalarValue(s.Value)
		c.params[name] = v
		c.conditions = append(c.conditions, fmt.Sprintf("%s %s $%s", ref, s.Op, name))

	case plan.StepProjection:
		for _, f := range s.Fields {
			c.addColumn(c.field(f))
		}
		c.distinct = c.distinct || s.Distinct

	case plan.StepAggregation:
		if s.GroupBy != "" {
			c.addColumn(c.field(s.GroupBy))
		}
		alias := plan.AggregationAlias(s)
		c.addColumn(fmt.Sprintf("%s(%s) AS %s", s.Function, c.aggregationTarget(s), alias))
		if c.aliases == nil {
			c.aliases = map[string]bool{}
		}
		c.aliases[alias] = true

	case plan.StepSort:
		dir, _ := movie.ParseDirection(s.Direction)
		key, ok := plan.SortAlias(s.Field, c.aliases)
		if !ok {
			key = c.field(s.Field)
		}
		c.order = fmt.Sprintf("ORDER BY %s %s", key, dir)

	case plan.StepLimit:
		n, _ := plan.IntValue(s.Value)
		c.limit = fmt.Sprintf("LIMIT %d", n)

	default:
		return &plan.InvalidPlanError{Reason: fmt.Sprintf("Unsupported step type: %s", s.Type)}
	}
	return nil
}

// traversal emits the relationship pattern, flipping the arrow when the plan
// names the endpoints in reverse.
func (c *compiler) traversal(from movie.Label, rel movie.Relationship, to movie.Label) {
	arrow := "-[:%s]->"
	if e, ok := rel.Endpoints(); ok && e.From == to && e.To == from {
		arrow = "<-[:%s]-"
	}
	c.matches = append(c.matches, fmt.Sprintf("MATCH %s"+arrow+"%s", node(from), rel, node(to)))
	c.traversed[from] = true
	c.traversed[to] = true
}

// field resolves a Label.property reference to var.property and records the label
// so it can be matched on its own if no traversal binds it.
func (c *compiler) field(f string) string {
	label, prop, _ := movie.ParseField(f)
	c.reference(label)
	return label.Var() + "." + prop
}

func (c *compiler) reference(label movie.Label) {
	if c.referenced[label] {
		return
	}
	c.referenced[label] = true
	c.refOrder = append(c.refOrder, label)
}

func (c *compiler) aggregationTarget(s plan.Step) string {
	if s.Field == "" {
		return "*"
	}
	label, prop, _ := movie.ParseField(s.Field)
	c.reference(label)
	if movie.Aggregation(s.Function) == movie.AggCount {
		return label.Var()
	}
	return label.Var() + "." + prop
}

func (c *compiler) addColumn(col string) {
	for _, existing := range c.columns {
		if existing == col {
			return
		}
	}
	c.columns = append(c.columns, col)
}

func (c *compiler) assemble() string {
	parts := make([]string, 0, len(c.matches)+len(c.refOrder)+4)
	parts = append(parts, c.matches...)
	for _, l := range c.refOrder {
		if !c.traversed[l] {
			parts = append(parts, "MATCH "+node(l))
		}
	}
	if len(c.conditions) > 0 {
		parts = append(parts, "WHERE "+strings.Join(c.conditions, " AND "))
	}

	ret := "RETURN "
	if c.distinct {
		ret += "DISTINCT "
	}
	parts = append(parts, ret+strings.Join(c.columns, ", "))

	if c.order != "" {
		parts = append(parts, c.order)
	}
	if c.limit != "" {
		parts = append(parts, c.limit)
	}
	return strings.Join(parts, "\n")
}

func node(l movie.Label) string {
	return fmt.Sprintf("(%s:%s)", l.Var(), l)
}
