// Package prompts builds the language-model prompts for each pipeline stage.
package prompts

import (
	"fmt"
	"strings"
)

// EntityFact is one resolved entity as shown to the model.
type EntityFact struct {
	SearchTerm string
	Label      string
	NodeName   string
}

// Grounding is the verified context injected into classification and
// planning prompts so the model works from database names, not user spellings.
type Grounding struct {
	Entities   []EntityFact
	Unresolved []string
}

// ClassifierContext renders entities as `"<term>" is a <Label> (full name: "<name>")`.
func (g Grounding) ClassifierContext() string {
	var b strings.Builder
	if len(g.Entities) == 0 {
		b.WriteString("No entities were found in the database.")
	}
	for i, e := range g.Entities {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%q is a %s (full name: %q)", e.SearchTerm, e.Label, e.NodeName)
	}
	if len(g.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nThese terms were NOT found in the database: %s", strings.Join(g.Unresolved, ", "))
	}
	return b.String()
}

// PlannerContext renders entities with the exact node name the plan must use.
func (g Grounding) PlannerContext() string {
	var b strings.Builder
	if len(g.Entities) == 0 {
		b.WriteString("(none)")
	}
	for i, e := range g.Entities {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%q = %s (exact name in DB: %q)", e.SearchTerm, e.Label, e.NodeName)
	}
	if len(g.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nNOT FOUND in database: %s", strings.Join(g.Unresolved, ", "))
	}
	return b.String()
}

// NoJSONInstruction is appended to prompts whose answer is shown to the user.
const NoJSONInstruction = `Do NOT mention databases, queries, vectors, scores, JSON, or other technical details.
Respond ONLY in plain English text.`
