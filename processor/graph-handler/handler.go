// Package graphhandler answers factual questions by asking the language model
// for a whitelisted query plan, compiling it to parameterized Cypher, running
// it read-only and rendering the rows as prose.
package graphhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360studio/cinegraph/cypher"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/model"
	"github.com/c360studio/cinegraph/plan"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	"github.com/c360studio/cinegraph/vocabulary/movie"
	"github.com/c360studio/cinegraph/workflow/prompts"
)

// Stage names used for model selection and call records.
const (
	PlannerStage  = "graph-planner"
	RendererStage = "graph-renderer"
)

const (
	// DefaultMaxRows caps the rows shown to the rendering model.
	DefaultMaxRows = 50

	// DefaultPlanAttempts is the number of planning calls made before giving up
	// on unparseable output.
	DefaultPlanAttempts = 2
)

// NotFoundPrefix starts every answer given without rendering.
const NotFoundPrefix = "I couldn't find an answer: "

// Handler answers graph questions.
type Handler struct {
	llm          llm.Completer
	graph        graph.Reader
	logger       *slog.Logger
	maxRows      int
	planAttempts int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxRows caps the rows passed to the rendering model.
func WithMaxRows(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxRows = n
		}
	}
}

// WithPlanAttempts sets how many planning calls are made when the model's
// reply cannot be parsed.
func WithPlanAttempts(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.planAttempts = n
		}
	}
}

// New creates a Handler.
func New(completer llm.Completer, reader graph.Reader, opts ...Option) *Handler {
	h := &Handler{
		llm:          completer,
		graph:        reader,
		logger:       slog.Default(),
		maxRows:      DefaultMaxRows,
		planAttempts: DefaultPlanAttempts,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle plans, executes and renders an answer. A *PlanningError means the
// question should be rephrased; other errors come from the model or graph
// collaborators.
func (h *Handler) Handle(ctx context.Context, query string, res entityresolver.Result) (string, error) {
	p, err := h.Plan(ctx, query, res)
	if err != nil {
		return "", err
	}

	rows, err := h.Execute(ctx, p)
	if err != nil {
		var invalid *plan.InvalidPlanError
		if errors.As(err, &invalid) {
			h.logger.Error("Plan rejected by compiler", "reason", invalid.Reason)
			return "", &PlanningError{Err: err}
		}
		return "", err
	}

	if answer, ok := notFound(rows); ok {
		return answer, nil
	}
	return h.Render(ctx, query, rows), nil
}

// Plan asks the model for a query plan and validates it. Unparseable replies
// are fed back with a correction prompt; a plan that parses but violates the
// whitelist is rejected without retrying.
func (h *Handler) Plan(ctx context.Context, query string, res entityresolver.Result) (plan.Plan, error) {
	ctx = llm.WithStage(ctx, PlannerStage)
	temperature := 0.0
	messages := []llm.Message{
		{Role: "system", Content: prompts.PlanningSystemPrompt(res.Grounding())},
		{Role: "user", Content: query},
	}
	var lastErr error

	for attempt := range h.planAttempts {
		resp, err := h.llm.Complete(ctx, llm.Request{
			Capability:  model.CapabilityForStage(PlannerStage),
			Messages:    messages,
			Temperature: &temperature,
			MaxTokens:   1024,
		})
		if err != nil {
			return plan.Plan{}, fmt.Errorf("plan completion: %w", err)
		}

		h.logger.Debug("Plan response received",
			"model", resp.Model,
			"attempt", attempt+1)

		p, parseErr := parsePlan(resp.Content)
		if parseErr == nil {
			if err := plan.ValidatePlan(p); err != nil {
				h.logger.Error("Model produced a plan outside the whitelist",
					"reason", err.Error(),
					"query", query)
				return plan.Plan{}, &PlanningError{Err: err}
			}
			return p, nil
		}

		lastErr = parseErr
		if attempt+1 >= h.planAttempts {
			break
		}

		h.logger.Warn("Plan format retry",
			"attempt", attempt+1,
			"error", parseErr)

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: prompts.PlanCorrectionPrompt(parseErr.Error())},
		)
	}

	return plan.Plan{}, &PlanningError{Err: lastErr}
}

func parsePlan(content string) (plan.Plan, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return plan.Plan{}, llm.ErrNoJSON
	}
	return plan.Parse([]byte(raw))
}

// Execute runs a validated plan read-only. Describe and path steps use their
// fixed templates; anything else goes through the compiler. A path with no
// result yields a single row carrying an "error" column.
func (h *Handler) Execute(ctx context.Context, p plan.Plan) ([]graph.Row, error) {
	if !p.IsLookup() {
		q, err := cypher.Compile(p)
		if err != nil {
			return nil, err
		}
		h.logger.Debug("Compiled plan", "cypher", q.Text, "params", q.Params)
		return h.graph.RunRead(ctx, q)
	}

	var rows []graph.Row
	for _, s := range p.Steps {
		found, err := h.lookup(ctx, s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, found...)
	}
	return rows, nil
}

func (h *Handler) lookup(ctx context.Context, s plan.Step) ([]graph.Row, error) {
	switch s.Type {
	case plan.StepDescribe:
		q, err := cypher.Describe(movie.Label(s.Label), s.Name)
		if err != nil {
			return nil, err
		}
		return h.graph.RunRead(ctx, q)

	case plan.StepPath:
		q, err := cypher.Path(movie.Label(s.FromLabel), s.FromName, movie.Label(s.ToLabel), s.ToName)
		if err != nil {
			return nil, err
		}
		rows, err := h.graph.RunRead(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return []graph.Row{{"error": fmt.Sprintf("No path found between %s and %s", s.FromName, s.ToName)}}, nil
		}
		return rows, nil

	default:
		return nil, fmt.Errorf("unsupported lookup step %q", s.Type)
	}
}

// notFound reports the direct answer for an empty result or an error row.
func notFound(rows []graph.Row) (string, bool) {
	if len(rows) == 0 {
		return NotFoundPrefix + "no results matched your question.", true
	}
	for _, row := range rows {
		if msg, ok := row["error"].(string); ok && msg != "" {
			return NotFoundPrefix + msg, true
		}
	}
	return "", false
}

// Render asks the model to phrase rows as an answer. At most maxRows rows are
// shown. If the model fails the rows are listed verbatim.
func (h *Handler) Render(ctx context.Context, query string, rows []graph.Row) string {
	shown, omitted := rows, 0
	if len(rows) > h.maxRows {
		shown, omitted = rows[:h.maxRows], len(rows)-h.maxRows
	}

	data, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		h.logger.Warn("Could not serialize rows for rendering", "error", err)
		return listRows(shown, omitted)
	}

	ctx = llm.WithStage(ctx, RendererStage)
	temperature := 0.3
	resp, err := h.llm.Complete(ctx, llm.Request{
		Capability: model.CapabilityForStage(RendererStage),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.AnswerSystemPrompt()},
			{Role: "user", Content: prompts.AnswerPrompt(query, string(data), omitted)},
		},
		Temperature: &temperature,
		MaxTokens:   2048,
	})
	if err != nil {
		h.logger.Warn("Answer rendering failed, listing rows", "error", err)
		return listRows(shown, omitted)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return listRows(shown, omitted)
	}
	return answer
}

// listRows formats rows one per line with columns in name order.
func listRows(rows []graph.Row, omitted int) string {
	var b strings.Builder
	b.WriteString("Here is what I found:")
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(row[k])))
		}
		b.WriteString("\n- ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "\n... and %d more results", omitted)
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "n/a"
	case string:
		return x
	case []any, map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
