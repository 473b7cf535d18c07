// Package pipeline answers a movie question end to end: resolve the entities
// it mentions, classify it, and dispatch it to the handler registered for that
// classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360studio/cinegraph/llm"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	graphhandler "github.com/c360studio/cinegraph/processor/graph-handler"
	queryclassifier "github.com/c360studio/cinegraph/processor/query-classifier"
)

// TracerName identifies spans created by this package.
const TracerName = "github.com/c360studio/cinegraph/pipeline"

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query is empty")

// Resolver grounds a question in the graph.
type Resolver interface {
	Resolve(ctx context.Context, query string) (entityresolver.Result, error)
}

// Classifier picks a route for a grounded question.
type Classifier interface {
	Classify(ctx context.Context, query string, res entityresolver.Result) queryclassifier.Classification
}

// Answer is the outcome of one question.
type Answer struct {
	RunID      string                          `json:"runId"`
	Query      string                          `json:"query"`
	Answer     string                          `json:"answer"`
	Route      queryclassifier.Type            `json:"route"`
	Reasoning  string                          `json:"reasoning"`
	Entities   []entityresolver.ResolvedEntity `json:"entities"`
	Unresolved []string                        `json:"unresolved"`
	Duration   time.Duration                   `json:"duration"`
}

// Pipeline runs resolve, classify and dispatch for each question. It holds no
// per-question state and is safe for concurrent use.
type Pipeline struct {
	resolver   Resolver
	classifier Classifier
	routes     *Routes
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithTimeout bounds each question. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// New creates a Pipeline.
func New(resolver Resolver, classifier Classifier, routes *Routes, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:   resolver,
		classifier: classifier,
		routes:     routes,
		tracer:     otel.Tracer(TracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask answers query. A planning failure is not an error: the answer asks the
// user to rephrase. Errors are returned for collaborator failures and for a
// classification with no registered route.
func (p *Pipeline) Ask(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	runID := uuid.New().String()
	ctx = llm.WithTraceContext(ctx, llm.TraceContext{TraceID: runID})
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.ask", trace.WithAttributes(
		attribute.String("cinegraph.run_id", runID),
	))
	defer span.End()

	p.metrics.inflight(1)
	defer p.metrics.inflight(-1)

	ans := &Answer{RunID: runID, Query: query}
	outcome := OutcomeError
	defer func() {
		ans.Duration = time.Since(start)
		p.metrics.recordQuery(string(ans.Route), outcome, ans.Duration)
	}()

	var res entityresolver.Result
	err := p.stage(ctx, "resolve", func(ctx context.Context) error {
		var err error
		res, err = p.resolver.Resolve(ctx, query)
		return err
	})
	if err != nil {
		return p.fail(span, runID, fmt.Errorf("resolve entities: %w", err))
	}
	ans.Entities, ans.Unresolved = res.Entities, res.Unresolved
	p.metrics.recordEntities(len(res.Entities), len(res.Unresolved))

	var cls queryclassifier.Classification
	p.observe(ctx, "classify", func(ctx context.Context) {
		cls = p.classifier.Classify(ctx, query, res)
	})
	ans.Route, ans.Reasoning = cls.Type, cls.Reasoning
	span.SetAttributes(attribute.String("cinegraph.route", string(cls.Type)))

	handler, err := p.routes.Lookup(cls.Type)
	if err != nil {
		return p.fail(span, runID, err)
	}

	err = p.stage(ctx, "handle."+string(cls.Type), func(ctx context.Context) error {
		var err error
		ans.Answer, err = handler.Handle(ctx, query, res)
		return err
	})
	var planErr *graphhandler.PlanningError
	switch {
	case errors.As(err, &planErr):
		p.logger.Warn("Question could not be planned", "run_id", runID, "error", err)
		ans.Answer = planErr.UserMessage()
		outcome = OutcomeRephrase
	case err != nil:
		return p.fail(span, runID, fmt.Errorf("%s handler: %w", cls.Type, err))
	default:
		outcome = OutcomeAnswered
	}

	p.logger.Info("Question answered",
		"run_id", runID,
		"route", ans.Route,
		"entities", len(ans.Entities),
		"duration", time.Since(start))
	return ans, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.recordStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// observe times a stage that cannot fail, such as classification, which
// falls back to the graph route on its own.
func (p *Pipeline) observe(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	fn(ctx)
	p.metrics.recordStage(name, time.Since(start))
}

func (p *Pipeline) fail(span trace.Span, runID string, err error) (*Answer, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.Error("Question failed", "run_id", runID, "error", err)
	return nil, err
}
