// Package queryclassifier routes a grounded question to graph traversal or
// similarity search.
package queryclassifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/model"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	"github.com/c360studio/cinegraph/workflow/prompts"
)

// Stage is the pipeline stage name used for model selection and call records.
const Stage = "query-classifier"

// Type is a routing category.
type Type string

const (
	TypeGraph      Type = "graph"
	TypeSimilarity Type = "similarity"
)

// FallbackReasoning is reported when the model reply could not be used.
const FallbackReasoning = "Default fallback"

// Classification is the routing decision for one question.
type Classification struct {
	Type      Type   `json:"type"`
	Reasoning string `json:"reasoning"`
}

// Classifier asks the model to pick a route.
type Classifier struct {
	llm    llm.Completer
	logger *slog.Logger
}

// New creates a Classifier. A nil logger uses slog.Default().
func New(completer llm.Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{llm: completer, logger: logger}
}

// Classify picks a route for query given its resolved entities. It never
// fails: any unusable reply routes to graph.
func (c *Classifier) Classify(ctx context.Context, query string, res entityresolver.Result) Classification {
	ctx = llm.WithStage(ctx, Stage)
	temperature := 0.0
	resp, err := c.llm.Complete(ctx, llm.Request{
		Capability: model.CapabilityForStage(Stage),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.ClassificationSystemPrompt(res.Grounding())},
			{Role: "user", Content: query},
		},
		Temperature: &temperature,
		MaxTokens:   256,
	})
	if err != nil {
		c.logger.Warn("Classification failed, defaulting to graph", "error", err)
		return fallback()
	}

	var reply struct {
		Type      string `json:"type"`
		Reasoning string `json:"reasoning"`
	}
	if err := llm.DecodeJSON(resp.Content, &reply); err != nil {
		c.logger.Warn("Classification reply was not JSON, defaulting to graph", "error", err)
		return fallback()
	}

	t := Type(strings.ToLower(strings.TrimSpace(reply.Type)))
	if t != TypeGraph && t != TypeSimilarity {
		c.logger.Warn("Unknown classification, defaulting to graph", "type", reply.Type)
		return fallback()
	}

	c.logger.Debug("Query classified", "type", t, "reasoning", reply.Reasoning)
	return Classification{Type: t, Reasoning: reply.Reasoning}
}

func fallback() Classification {
	return Classification{Type: TypeGraph, Reasoning: FallbackReasoning}
}
