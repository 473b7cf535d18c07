package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/c360studio/cinegraph/config"
	"github.com/c360studio/cinegraph/graph"
	"github.com/c360studio/cinegraph/llm"
	"github.com/c360studio/cinegraph/model"
	"github.com/c360studio/cinegraph/pipeline"
	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	graphhandler "github.com/c360studio/cinegraph/processor/graph-handler"
	queryclassifier "github.com/c360studio/cinegraph/processor/query-classifier"
	similarityhandler "github.com/c360studio/cinegraph/processor/similarity-handler"
	"github.com/c360studio/cinegraph/service"
	"github.com/c360studio/cinegraph/vector"
)

// App owns the process-scoped connections. Commands open only the parts they
// need; Close releases whatever was opened.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Graph
	graph *graph.Store

	// Vectors
	index    *vector.Index
	embedder vector.Embedder
	redis    *redis.Client

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn

	// LLM
	registry  *model.Registry
	llmClient *llm.Client

	metricsRegistry *prometheus.Registry
	asker           service.Asker
}

// NewApp creates an application instance. Nothing is connected yet.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// OpenGraph connects to Neo4j.
func (a *App) OpenGraph(ctx context.Context) error {
	if a.graph != nil {
		return nil
	}
	g := a.cfg.Graph
	store, err := graph.Open(ctx, graph.Config{
		URI:          g.URI,
		Username:     g.Username,
		Password:     g.Password,
		Database:     g.Database,
		MaxPoolSize:  g.MaxPoolSize,
		QueryTimeout: g.QueryTimeout,
	}, graph.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("open graph: %w", err)
	}
	a.graph = store
	return nil
}

// OpenVectors creates the vector index client and the embedder, wrapping the
// embedder in a Redis cache when one is configured.
func (a *App) OpenVectors(ctx context.Context) error {
	if a.index != nil {
		return nil
	}
	v := a.cfg.Vector
	index, err := vector.NewIndex(v.IndexHost, v.APIKey,
		vector.WithNamespace(v.Namespace),
		vector.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}

	var embedder vector.Embedder
	switch v.Embedding.Provider {
	case "openai":
		embedder = vector.NewOpenAIEmbedder(v.Embedding.URL, v.Embedding.Model, v.Embedding.APIKey, v.Embedding.Dimensions)
	default:
		embedder = vector.NewGeminiEmbedder(v.Embedding.Model, v.Embedding.APIKey)
	}

	if a.cfg.Redis.URL != "" {
		client, err := vector.NewRedisClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			// The cache is an optimisation; embed uncached.
			a.logger.Warn("Embedding cache disabled", "error", err)
		} else {
			a.redis = client
			embedder = vector.NewCachedEmbedder(embedder, client, a.cfg.Redis.TTL, a.logger)
		}
	}

	a.index = index
	a.embedder = embedder
	return nil
}

// OpenNATS connects to the configured server, or starts an embedded one when
// no URL is set and embedding is enabled. It is a no-op when NATS is not
// configured.
func (a *App) OpenNATS(ctx context.Context) error {
	if a.natsConn != nil {
		return nil
	}
	if a.cfg.NATS.URL != "" {
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL,
			nats.Name("cinegraph"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second))
		if err != nil {
			return wrapNATSError(err, a.cfg.NATS.URL)
		}
		a.natsConn = conn
		return nil
	}
	if !a.cfg.NATS.Embedded {
		return nil
	}

	a.logger.Info("Starting embedded NATS server")
	ns, err := server.NewServer(&server.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("embedded NATS server failed to start")
	}
	a.embeddedServer = ns

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		a.embeddedServer = nil
		return fmt.Errorf("connect to embedded NATS: %w", err)
	}
	a.natsConn = conn
	a.logger.Info("Embedded NATS server ready", "url", ns.ClientURL())
	return nil
}

// OpenLLM builds the model registry and the LLM client. Calls are published
// to NATS when recording is enabled and a connection is open.
func (a *App) OpenLLM() error {
	if a.llmClient != nil {
		return nil
	}
	registry, err := a.cfg.Registry()
	if err != nil {
		return fmt.Errorf("load model registry: %w", err)
	}

	opts := []llm.ClientOption{llm.WithLogger(a.logger)}
	if a.cfg.NATS.RecordCalls && a.natsConn != nil {
		store, err := llm.NewCallStore(a.natsConn,
			llm.WithSubject(a.cfg.NATS.CallSubject),
			llm.WithStoreLogger(a.logger))
		if err != nil {
			return fmt.Errorf("create call store: %w", err)
		}
		opts = append(opts, llm.WithCallStore(store))
	}

	a.registry = registry
	a.llmClient = llm.NewClient(registry, opts...)
	return nil
}

// Pipeline opens the graph, the LLM and, when the similarity route is
// enabled, the vector index, then wires the question pipeline.
func (a *App) Pipeline(ctx context.Context) (service.Asker, error) {
	if a.asker != nil {
		return a.asker, nil
	}
	if err := a.OpenGraph(ctx); err != nil {
		return nil, err
	}
	if err := a.OpenLLM(); err != nil {
		return nil, err
	}

	p := a.cfg.Pipeline
	resolver := entityresolver.New(a.llmClient, a.graph,
		entityresolver.WithLogger(a.logger),
		entityresolver.WithConcurrency(p.ResolverConcurrency))
	classifier := queryclassifier.New(a.llmClient, a.logger)

	routes := pipeline.NewRoutes()
	graphHandler := graphhandler.New(a.llmClient, a.graph,
		graphhandler.WithLogger(a.logger),
		graphhandler.WithMaxRows(p.MaxRenderRows),
		graphhandler.WithPlanAttempts(p.PlanAttempts))
	if err := routes.Register(queryclassifier.TypeGraph, graphHandler); err != nil {
		return nil, err
	}

	if p.Similarity {
		if err := a.OpenVectors(ctx); err != nil {
			return nil, err
		}
		similarity := similarityhandler.New(a.llmClient, a.graph, a.embedder, a.index,
			similarityhandler.WithLogger(a.logger),
			similarityhandler.WithTopK(p.SimilarityTopK, p.FallbackTopK))
		if err := routes.Register(queryclassifier.TypeSimilarity, similarity); err != nil {
			return nil, err
		}
	}

	a.metricsRegistry = prometheus.NewRegistry()
	a.metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewMetrics(a.metricsRegistry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.asker = pipeline.New(resolver, classifier, routes,
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithTimeout(p.Timeout))
	return a.asker, nil
}

// WatchModels hot-reloads the registry file until ctx is cancelled. It
// returns immediately when no registry file is configured.
func (a *App) WatchModels(ctx context.Context) {
	if a.cfg.ModelsFile == "" || a.registry == nil {
		return
	}
	w := model.NewWatcher(a.cfg.ModelsFile, a.registry, a.logger)
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Model registry watcher stopped", "error", err)
		}
	}()
}

// HealthChecks returns the dependency checks served on /healthz.
func (a *App) HealthChecks() []service.HTTPOption {
	var opts []service.HTTPOption
	if a.graph != nil {
		opts = append(opts, service.WithHealthCheck("graph", a.graph.Ping))
	}
	if a.index != nil {
		opts = append(opts, service.WithHealthCheck("vectors", func(ctx context.Context) error {
			_, err := a.index.DescribeStats(ctx)
			return err
		}))
	}
	if a.natsConn != nil {
		opts = append(opts, service.WithHealthCheck("nats", func(context.Context) error {
			if !a.natsConn.IsConnected() {
				return fmt.Errorf("nats: %s", a.natsConn.Status())
			}
			return nil
		}))
	}
	return opts
}

// Close releases every opened connection. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain NATS: %w", err))
		}
		a.natsConn.Close()
		a.natsConn = nil
	}
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
		a.embeddedServer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close graph: %w", err))
		}
		a.graph = nil
	}
	return errors.Join(errs...)
}

// RunREPL reads questions from in until EOF or exit and writes answers to out.
func (a *App) RunREPL(ctx context.Context, asker service.Asker, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "cinegraph> ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			a.handleCommand(input, out)
			continue
		}

		answer, err := asker.Ask(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(out, "%s\n\n", answer.Answer)
	}
}

func (a *App) handleCommand(input string, out io.Writer) {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/help":
		fmt.Fprintln(out, "Available commands:")
		fmt.Fprintln(out, "  /help     - Show this help")
		fmt.Fprintln(out, "  /status   - Show connections and model health")
		fmt.Fprintln(out, "  quit/exit - Exit the REPL")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Or ask any question about the movie catalogue.")

	case "/status":
		fmt.Fprintf(out, "Graph: %s\n", a.cfg.Graph.URI)
		if a.index != nil {
			fmt.Fprintf(out, "Vectors: %s\n", a.cfg.Vector.IndexHost)
		} else {
			fmt.Fprintln(out, "Vectors: disabled")
		}
		switch {
		case a.embeddedServer != nil:
			fmt.Fprintln(out, "NATS: embedded")
		case a.natsConn != nil:
			fmt.Fprintf(out, "NATS: %s\n", a.cfg.NATS.URL)
		default:
			fmt.Fprintln(out, "NATS: disabled")
		}
		if a.registry != nil {
			health := a.registry.HealthSnapshot()
			names := make([]string, 0, len(health))
			for name := range health {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				state := "available"
				if !a.registry.IsEndpointAvailable(name) {
					state = "unavailable"
				}
				fmt.Fprintf(out, "Model %s: %s\n", name, state)
			}
		}

	default:
		fmt.Fprintf(out, "Unknown command: %s\n", parts[0])
		fmt.Fprintln(out, "Type /help for available commands.")
	}
}

// wrapNATSError adds guidance for the common connection failures.
func wrapNATSError(err error, url string) error {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no servers available") ||
		strings.Contains(msg, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or unset nats.url and set nats.embedded to run an in-process server.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}
