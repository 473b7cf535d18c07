// Package service exposes the question pipeline over HTTP and NATS
// request/reply.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/c360studio/cinegraph/pipeline"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	queryclassifier "github.com/c360studio/cinegraph/processor/query-classifier"
)

// MaxQueryLength is the longest question accepted, in characters.
const MaxQueryLength = 500

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, query string) (*pipeline.Answer, error)
}

// AskRequest is the body of an ask request.
type AskRequest struct {
	Query string `json:"query" validate:"required,min=1,max=500"`
}

// AskResponse is the body of a successful ask.
type AskResponse struct {
	RunID      string                          `json:"runId"`
	Answer     string                          `json:"answer"`
	Route      queryclassifier.Type            `json:"route"`
	Reasoning  string                          `json:"reasoning"`
	Entities   []entityresolver.ResolvedEntity `json:"entities"`
	Unresolved []string                        `json:"unresolved"`
	DurationMs int64                           `json:"durationMs"`
}

// ErrorResponse is returned for rejected or failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newAskResponse(a *pipeline.Answer) AskResponse {
	return AskResponse{
		RunID:      a.RunID,
		Answer:     a.Answer,
		Route:      a.Route,
		Reasoning:  a.Reasoning,
		Entities:   a.Entities,
		Unresolved: a.Unresolved,
		DurationMs: a.Duration.Milliseconds(),
	}
}

var validate = validator.New()

// ValidateRequest checks an ask request and returns a readable error.
func ValidateRequest(req AskRequest) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return errors.New("query is required")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
