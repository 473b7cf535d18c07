package movie

import "strings"

// Label is a node label in the movie graph.
type Label string

const (
	LabelMovie    Label = "Movie"
	LabelDirector Label = "Director"
	LabelActor    Label = "Actor"
	LabelGenre    Label = "Genre"
	LabelTheme    Label = "Theme"
	LabelAward    Label = "Award"
)

// Labels lists every node label in resolution order.
var Labels = []Label{LabelMovie, LabelDirector, LabelActor, LabelGenre, LabelTheme, LabelAward}

// Relationship is a directed relationship type in the movie graph.
type Relationship string

const (
	RelDirected  Relationship = "DIRECTED"
	RelActedIn   Relationship = "ACTED_IN"
	RelBelongsTo Relationship = "BELONGS_TO"
	RelExplores  Relationship = "EXPLORES"
	RelWon       Relationship = "WON"
)

// Relationships lists every relationship type.
var Relationships = []Relationship{RelDirected, RelActedIn, RelBelongsTo, RelExplores, RelWon}

// Endpoints describes the source and target label of a relationship type.
type Endpoints struct {
	From Label
	To   Label
}

var endpoints = map[Relationship]Endpoints{
	RelDirected:  {From: LabelDirector, To: LabelMovie},
	RelActedIn:   {From: LabelActor, To: LabelMovie},
	RelBelongsTo: {From: LabelMovie, To: LabelGenre},
	RelExplores:  {From: LabelMovie, To: LabelTheme},
	RelWon:       {From: LabelMovie, To: LabelAward},
}

var properties = map[Label][]string{
	LabelMovie:    {"title", "year"},
	LabelDirector: {"name"},
	LabelActor:    {"name"},
	LabelGenre:    {"name"},
	LabelTheme:    {"name"},
	LabelAward:    {"name", "category"},
}

// variables maps each label to the fixed single-letter query variable.
var variables = map[Label]string{
	LabelMovie:    "m",
	LabelDirector: "d",
	LabelActor:    "a",
	LabelGenre:    "g",
	LabelTheme:    "t",
	LabelAward:    "w",
}

// IsValid reports whether l is a known label.
func (l Label) IsValid() bool {
	_, ok := properties[l]
	return ok
}

// Properties returns the accessible properties of the label.
func (l Label) Properties() []string {
	props := properties[l]
	out := make([]string, len(props))
	copy(out, props)
	return out
}

// HasProperty reports whether prop is accessible on the label.
func (l Label) HasProperty(prop string) bool {
	for _, p := range properties[l] {
		if p == prop {
			return true
		}
	}
	return false
}

// CanonicalProperty returns the property holding the node's stored name.
func (l Label) CanonicalProperty() string {
	if l == LabelMovie {
		return "title"
	}
	return "name"
}

// Var returns the query variable bound to the label, or "" for unknown labels.
func (l Label) Var() string {
	return variables[l]
}

// IsValid reports whether r is a known relationship type.
func (r Relationship) IsValid() bool {
	_, ok := endpoints[r]
	return ok
}

// Endpoints returns the source and target labels of the relationship.
func (r Relationship) Endpoints() (Endpoints, bool) {
	e, ok := endpoints[r]
	return e, ok
}

// ParseField splits a "Label.property" reference. It does not check the whitelist.
func ParseField(field string) (Label, string, bool) {
	label, prop, ok := strings.Cut(field, ".")
	if !ok || label == "" || prop == "" {
		return Label(label), prop, false
	}
	return Label(label), prop, true
}
