package plan

import (
	"regexp"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateStep checks a single step against the vocabulary whitelists.
// A sort step validated on its own must reference a whitelisted property; sorting
// by an aggregation alias is only accepted through ValidatePlan.
func ValidateStep(s Step) error {
	return validateStep(s, nil)
}

// ValidatePlan validates every step in order and stops at the first violation.
// On top of the per-step checks it rejects an empty plan, more than one sort or
// limit step, and plans that mix describe/path steps with query steps.
func ValidatePlan(p Plan) error {
	if len(p.Steps) == 0 {
		return invalidf("Empty plan")
	}

	aliases := map[string]bool{}
	var sorts, limits, lookups, queries int
	for _, s := range p.Steps {
		if err := validateStep(s, aliases); err != nil {
			return err
		}
		switch s.Type {
		case StepSort:
			sorts++
			if sorts > 1 {
				return invalidf("Duplicate sort step")
			}
		case StepLimit:
			limits++
			if limits > 1 {
				return invalidf("Duplicate limit step")
			}
		case StepAggregation:
			aliases[aggregationAlias(s)] = true
		}
		if s.Type.IsLookup() {
			lookups++
		} else {
			queries++
		}
		if lookups > 0 && queries > 0 {
			return invalidf("Cannot mix describe or path steps with query steps")
		}
	}
	return nil
}

func validateStep(s Step, aliases map[string]bool) error {
	switch s.Type {
	case StepTraversal:
		if err := checkLabel(s.From); err != nil {
			return err
		}
		if err := checkLabel(s.To); err != nil {
			return err
		}
		if !movie.Relationship(s.Rel).IsValid() {
			return invalidf("Invalid relationship: %s", s.Rel)
		}

	case StepFilter:
		if err := checkField(s.Field); err != nil {
			return err
		}
		if !movie.Operator(s.Op).IsValid() {
			return invalidf("Invalid operator: %s", s.Op)
		}
		if _, ok := ScalarValue(s.Value); !ok {
			return invalidf("Invalid value: %v", s.Value)
		}

	case StepProjection:
		if len(s.Fields) == 0 {
			return invalidf("Invalid projection: no fields")
		}
		for _, f := range s.Fields {
			if err := checkField(f); err != nil {
				return err
			}
		}

	case StepAggregation:
		if !movie.Aggregation(s.Function).IsValid() {
			return invalidf("Invalid aggregation: %s", s.Function)
		}
		if s.Field != "" {
			if err := checkField(s.Field); err != nil {
				return err
			}
		} else if movie.Aggregation(s.Function) != movie.AggCount {
			return invalidf("Invalid aggregation: %s requires a field", s.Function)
		}
		if s.GroupBy != "" {
			if err := checkField(s.GroupBy); err != nil {
				return err
			}
		}
		if s.Alias != "" && !aliasPattern.MatchString(s.Alias) {
			return invalidf("Invalid alias: %s", s.Alias)
		}

	case StepSort:
		if _, ok := SortAlias(s.Field, aliases); !ok {
			if err := checkField(s.Field); err != nil {
				return err
			}
		}
		if _, ok := movie.ParseDirection(s.Direction); !ok {
			return invalidf("Invalid direction: %s", s.Direction)
		}

	case StepLimit:
		n, ok := IntValue(s.Value)
		if !ok || n < movie.MinLimit || n > movie.MaxLimit {
			return invalidf("Invalid limit: %v", s.Value)
		}

	case StepDescribe:
		if err := checkLabel(s.Label); err != nil {
			return err
		}
		if s.Name == "" {
			return invalidf("Invalid name: describe step requires a name")
		}

	case StepPath:
		if err := checkLabel(s.FromLabel); err != nil {
			return err
		}
		if err := checkLabel(s.ToLabel); err != nil {
			return err
		}
		if s.FromName == "" || s.ToName == "" {
			return invalidf("Invalid name: path step requires both names")
		}

	default:
		return invalidf("Unknown step type: %s", s.Type)
	}
	return nil
}

// SortAlias resolves a sort field against declared aggregation aliases. Both the
// bare alias and a Label-qualified alias ("Movie.movieCount") are accepted. A
// declared alias wins over a property of the same name, since after an
// aggregating RETURN only the alias is in scope.
func SortAlias(field string, aliases map[string]bool) (string, bool) {
	if len(aliases) == 0 {
		return "", false
	}
	if aliases[field] {
		return field, true
	}
	label, prop, ok := movie.ParseField(field)
	if ok && label.IsValid() && aliases[prop] {
		return prop, true
	}
	return "", false
}

// AggregationAlias returns the output column name of an aggregation step.
func AggregationAlias(s Step) string {
	return aggregationAlias(s)
}

func aggregationAlias(s Step) string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Function + "_result"
}

func checkLabel(l string) error {
	if !movie.Label(l).IsValid() {
		return invalidf("Invalid label: %s", l)
	}
	return nil
}

func checkField(field string) error {
	label, prop, _ := movie.ParseField(field)
	if !label.IsValid() {
		return invalidf("Invalid label: %s", label)
	}
	if !label.HasProperty(prop) {
		return invalidf("Invalid property: %s", field)
	}
	return nil
}
