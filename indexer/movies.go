// Package indexer populates the movie graph and the vector index that the
// question pipeline reads from.
package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// awardPattern splits "Oscar (Best Picture)" into name and category.
var awardPattern = regexp.MustCompile(`^(.+?)\s*\((.+)\)$`)

// Movie is one record of the movies JSON file.
type Movie struct {
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Directors []string `json:"directors,omitempty"`
	Actors    []string `json:"actors,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Themes    []string `json:"themes,omitempty"`
	Awards    []Award  `json:"awards,omitempty"`
}

// Award is an award won by a movie.
type Award struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// UnmarshalJSON accepts {"name", "category"} objects and
// "Name (Category)" strings. A string without a category keeps the
// whole text as the name.
func (a *Award) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ParseAward(s)
		return nil
	}
	type plain Award
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("award must be a string or an object: %w", err)
	}
	*a = Award{Name: strings.TrimSpace(p.Name), Category: strings.TrimSpace(p.Category)}
	return nil
}

// ParseAward parses "Name (Category)".
func ParseAward(s string) Award {
	s = strings.TrimSpace(s)
	if m := awardPattern.FindStringSubmatch(s); m != nil {
		return Award{Name: strings.TrimSpace(m[1]), Category: strings.TrimSpace(m[2])}
	}
	return Award{Name: s}
}

// LoadMovies reads a JSON array of movies. Records without a title are
// rejected.
func LoadMovies(path string) ([]Movie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read movies: %w", err)
	}
	var movies []Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("parse movies %s: %w", path, err)
	}
	for i := range movies {
		movies[i].Title = strings.TrimSpace(movies[i].Title)
		if movies[i].Title == "" {
			return nil, fmt.Errorf("movie %d in %s has no title", i, path)
		}
	}
	return movies, nil
}
