package prompts

import (
	"strings"
	"testing"

	"github.com/c360studio/cinegraph/vocabulary/movie"
)

var nolan = Grounding{
	Entities: []EntityFact{
		{SearchTerm: "Nolan", Label: "Director", NodeName: "Christopher Nolan"},
		{SearchTerm: "Action", Label: "Genre", NodeName: "Action"},
	},
	Unresolved: []string{"Zorblax"},
}

func TestGrounding_ClassifierContext(t *testing.T) {
	got := nolan.ClassifierContext()

	want := []string{
		`"Nolan" is a Director (full name: "Christopher Nolan")`,
		`"Action" is a Genre (full name: "Action")`,
		"NOT found in the database: Zorblax",
	}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("ClassifierContext missing %q in:\n%s", w, got)
		}
	}

	if empty := (Grounding{}).ClassifierContext(); empty != "No entities were found in the database." {
		t.Errorf("unexpected empty context %q", empty)
	}
}

func TestGrounding_PlannerContext(t *testing.T) {
	got := nolan.PlannerContext()
	if !strings.Contains(got, `"Nolan" = Director (exact name in DB: "Christopher Nolan")`) {
		t.Errorf("PlannerContext missing canonical name:\n%s", got)
	}
	if !strings.Contains(got, "NOT FOUND in database: Zorblax") {
		t.Errorf("PlannerContext missing unresolved terms:\n%s", got)
	}
}

func TestPlanningSystemPrompt(t *testing.T) {
	prompt := PlanningSystemPrompt(nolan)

	sections := []string{"Resolved Entities", "Graph Schema", "Step Types", "Rules", "Examples"}
	for _, section := range sections {
		if !strings.Contains(prompt, section) {
			t.Errorf("PlanningSystemPrompt missing section: %s", section)
		}
	}

	// Every whitelisted term must be offered to the planner.
	for _, l := range movie.Labels {
		if !strings.Contains(prompt, string(l)+"(") {
			t.Errorf("schema missing label %s", l)
		}
	}
	for _, r := range movie.Relationships {
		if !strings.Contains(prompt, "[:"+string(r)+"]") {
			t.Errorf("schema missing relationship %s", r)
		}
	}
	for _, op := range movie.Operators {
		if !strings.Contains(prompt, string(op)) {
			t.Errorf("prompt missing operator %s", op)
		}
	}
	if !strings.Contains(prompt, "Value between 1 and 100") {
		t.Error("prompt missing limit range")
	}
	if !strings.Contains(prompt, "Christopher Nolan") {
		t.Error("prompt missing grounding")
	}
}

func TestSchemaDescription(t *testing.T) {
	got := SchemaDescription()
	for _, w := range []string{"Movie(title,year)", "Award(name,category)", "Director-[:DIRECTED]->Movie", "Movie-[:WON]->Award"} {
		if !strings.Contains(got, w) {
			t.Errorf("SchemaDescription missing %q:\n%s", w, got)
		}
	}
}

func TestClassificationSystemPrompt(t *testing.T) {
	prompt := ClassificationSystemPrompt(nolan)
	for _, w := range []string{`"graph"`, `"similarity"`, `"reasoning"`, "Christopher Nolan"} {
		if !strings.Contains(prompt, w) {
			t.Errorf("ClassificationSystemPrompt missing %q", w)
		}
	}
}

func TestAnswerPrompt(t *testing.T) {
	prompt := AnswerPrompt("Who directed Heat?", `[{"d.name":"Michael Mann"}]`, 0)
	if !strings.Contains(prompt, "Question: Who directed Heat?") {
		t.Error("AnswerPrompt missing question")
	}
	if strings.Contains(prompt, "more results") {
		t.Error("AnswerPrompt should not mention omitted rows when none were omitted")
	}

	prompt = AnswerPrompt("q", "[]", 12)
	if !strings.Contains(prompt, "... and 12 more results") {
		t.Error("AnswerPrompt missing omitted count")
	}
}

func TestRankPrompt(t *testing.T) {
	prompt := RankPrompt(
		SourceMovie{Title: "Alien", Genres: []string{"Sci-Fi", "Horror"}, Themes: []string{"Survival"}},
		[]Candidate{
			{Title: "Aliens", Genres: []string{"Sci-Fi", "Action"}, Text: "Movie Title: Aliens"},
			{Title: "The Thing", Genres: []string{"Horror"}, Text: "Movie Title: The Thing"},
		},
	)
	for _, w := range []string{`similar to: "Alien"`, "Genres: Sci-Fi, Horror", "Here are 2 movies", "- Aliens [Genres: Sci-Fi, Action]", "10 BEST"} {
		if !strings.Contains(prompt, w) {
			t.Errorf("RankPrompt missing %q", w)
		}
	}
}

func TestFallbackRankPrompt(t *testing.T) {
	prompt := FallbackRankPrompt("mind-bending heist films", []string{"Movie Title: Inception", "Movie Title: Heat"})
	if !strings.Contains(prompt, "--- Movie 2 ---\nMovie Title: Heat") {
		t.Errorf("FallbackRankPrompt missing numbered candidates:\n%s", prompt)
	}
}
