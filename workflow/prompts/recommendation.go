package prompts

import (
	"fmt"
	"strings"
)

// RecommendSystemPrompt frames the ranking model.
func RecommendSystemPrompt() string {
	return "You are a movie recommendation expert. Respond ONLY with a numbered list of movie recommendations with short explanations. Never respond with JSON."
}

// SourceMovie describes the movie the user liked.
type SourceMovie struct {
	Title  string
	Genres []string
	Themes []string
}

// Candidate is a movie that survived the genre cross-check.
type Candidate struct {
	Title  string
	Genres []string
	Text   string
}

// RankPrompt asks for the best 10 candidates with a reason each.
func RankPrompt(source SourceMovie, candidates []Candidate) string {
	var list strings.Builder
	for i, c := range candidates {
		if i > 0 {
			list.WriteString("\n\n")
		}
		fmt.Fprintf(&list, "- %s [Genres: %s]\n  Info: %s", c.Title, strings.Join(c.Genres, ", "), c.Text)
	}

	return fmt.Sprintf(`The user wants movies similar to: %q
  - Genres: %s
  - Themes: %s

Here are %d movies that share at least one genre:
%s

Pick the 10 BEST matches. Rank by:
1. Genre overlap (most important)
2. Theme similarity
3. Overall style

For each pick, explain in 1-2 sentences WHY it is similar.
%s
Format as a numbered list.`,
		source.Title, strings.Join(source.Genres, ", "), strings.Join(source.Themes, ", "),
		len(candidates), list.String(), NoJSONInstruction)
}

// FallbackRankPrompt ranks raw vector hits when no source movie anchors the search.
func FallbackRankPrompt(query string, texts []string) string {
	var list strings.Builder
	for i, t := range texts {
		if i > 0 {
			list.WriteString("\n\n")
		}
		fmt.Fprintf(&list, "--- Movie %d ---\n%s", i+1, t)
	}

	return fmt.Sprintf(`The user asked: %q

Here are %d movies:
%s

Pick the 10 BEST matches for what the user is looking for.
For each pick, explain in 1-2 sentences WHY it fits.
%s
Format as a numbered list.`, query, len(texts), list.String(), NoJSONInstruction)
}
