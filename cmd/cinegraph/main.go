// Package main provides the cinegraph binary entry point.
// CineGraph answers questions about a movie catalogue by combining a Neo4j
// property graph with a vector index of plot descriptions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	// Register LLM providers via init()
	_ "github.com/c360studio/cinegraph/llm/providers"

	"github.com/c360studio/cinegraph/config"
	"github.com/c360studio/cinegraph/indexer"
	"github.com/c360studio/cinegraph/service"
	"github.com/c360studio/cinegraph/vector"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "cinegraph"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Movie question answering over a graph and a vector index",
		Long: `CineGraph answers natural-language questions about movies.

Questions about facts and relationships (who directed what, which actors
worked together, how two people are connected) are planned into safe,
parameterized Cypher and run against Neo4j. Requests for similar movies
are answered from a vector index of plot descriptions, cross-checked
against the graph for shared genres.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		askCmd(&flags),
		replCmd(&flags),
		serveCmd(&flags),
		ingestCmd(&flags),
		checkCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// setup configures logging, loads and validates the configuration and
// creates the App. The returned context is cancelled on SIGINT or SIGTERM.
func setup(cmd *cobra.Command, flags *globalFlags) (context.Context, context.CancelFunc, *App, error) {
	bootstrap := newLogger(flags.logLevel, "info")
	cfg, err := config.NewLoader(bootstrap).Load(flags.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(flags.logLevel, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	return ctx, cancel, NewApp(cfg, logger), nil
}

// newLogger builds a stderr text logger. The flag wins over the configured
// level.
func newLogger(flagLevel, cfgLevel string) *slog.Logger {
	name := flagLevel
	if name == "" {
		name = cfgLevel
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(name)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func closeApp(app *App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		app.logger.Warn("Shutdown incomplete", "error", err)
	}
}

func askCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, app, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer cancel()
			if err := app.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			defer closeApp(app)

			asker, err := app.Pipeline(ctx)
			if err != nil {
				return err
			}
			answer, err := asker.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(answer)
			}
			fmt.Fprintln(out, answer.Answer)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full answer record as JSON")
	return cmd
}

func replCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, app, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer cancel()
			if err := app.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			defer closeApp(app)

			asker, err := app.Pipeline(ctx)
			if err != nil {
				return err
			}
			app.WatchModels(ctx)

			printBanner(cmd)
			return app.RunREPL(ctx, asker, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the NATS responder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, app, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer cancel()
			if err := app.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			defer closeApp(app)

			// NATS first so LLM calls can be recorded.
			if err := app.OpenNATS(ctx); err != nil {
				return err
			}
			asker, err := app.Pipeline(ctx)
			if err != nil {
				return err
			}
			app.WatchModels(ctx)

			if addr == "" {
				addr = app.cfg.HTTP.Addr
			}
			httpOpts := append([]service.HTTPOption{
				service.WithHTTPLogger(app.logger),
				service.WithGatherer(app.metricsRegistry),
				service.WithServerTimeouts(app.cfg.HTTP.ReadTimeout, app.cfg.HTTP.WriteTimeout),
			}, app.HealthChecks()...)
			httpServer := service.NewHTTPServer(asker, httpOpts...)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return httpServer.ListenAndServe(gctx, addr)
			})

			if app.natsConn != nil {
				responder, err := service.NewResponder(app.natsConn, asker,
					service.WithAskSubject(app.cfg.NATS.Subject),
					service.WithQueueGroup(app.cfg.NATS.QueueGroup),
					service.WithResponderLogger(app.logger))
				if err != nil {
					return err
				}
				if err := responder.Start(gctx); err != nil {
					return err
				}
				g.Go(func() error {
					<-gctx.Done()
					return responder.Stop()
				})
			} else {
				app.logger.Info("NATS not configured, responder disabled")
			}

			app.logger.Info("CineGraph ready", "version", Version, "http", addr)
			err = g.Wait()
			app.logger.Info("Received shutdown signal")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides http.addr)")
	return cmd
}

func ingestCmd(flags *globalFlags) *cobra.Command {
	var (
		moviesPath string
		chunkGlobs []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load movies into the graph and plot chunks into the vector index",
		Long: `Ingest writes the movies JSON file into Neo4j with idempotent MERGE
statements and embeds plot chunk files into the vector index. Chunk files
are split on lines of five or more dashes and may be selected with
recursive globs such as "data/**/*.txt".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if moviesPath == "" && len(chunkGlobs) == 0 {
				return fmt.Errorf("nothing to ingest: set --movies and/or --chunks")
			}
			ctx, cancel, app, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer cancel()
			defer closeApp(app)

			out := cmd.OutOrStdout()
			if moviesPath != "" {
				movies, err := indexer.LoadMovies(moviesPath)
				if err != nil {
					return err
				}
				if err := app.OpenGraph(ctx); err != nil {
					return err
				}
				stats, err := indexer.NewGraphBuilder(app.graph, app.logger).Build(ctx, movies)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Graph: %d movies, %d nodes, %d relationships\n",
					stats.Movies, stats.Nodes, stats.Relationships)
			}

			if len(chunkGlobs) > 0 {
				files, err := indexer.ResolveFiles(chunkGlobs)
				if err != nil {
					return err
				}
				if err := app.OpenVectors(ctx); err != nil {
					return err
				}
				stats, err := indexer.NewVectorBuilder(app.embedder, app.index,
					indexer.WithVectorLogger(app.logger)).Build(ctx, files)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Vectors: %d files, %d chunks, %d upserted, %d failed\n",
					stats.Files, stats.Chunks, stats.Upserted, stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&moviesPath, "movies", "", "Movies JSON file")
	cmd.Flags().StringSliceVar(&chunkGlobs, "chunks", nil, "Plot chunk files or glob patterns (repeatable)")
	return cmd
}

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the graph, vector index and model registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, app, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer cancel()
			defer closeApp(app)

			out := cmd.OutOrStdout()
			failed := 0
			report := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "✓ %s\n", name)
			}

			report("config", app.cfg.Validate())

			err = app.OpenGraph(ctx)
			if err == nil {
				err = app.graph.Ping(ctx)
			}
			report("graph "+app.cfg.Graph.URI, err)

			if app.cfg.Vector.IndexHost != "" {
				err = app.OpenVectors(ctx)
				if err == nil {
					var stats *vector.Stats
					stats, err = app.index.DescribeStats(ctx)
					if err == nil {
						fmt.Fprintf(out, "  %d vectors, dimension %d\n", stats.TotalVectorCount, stats.Dimension)
					}
				}
				report("vectors "+app.cfg.Vector.IndexHost, err)
			}

			err = app.OpenLLM()
			if err == nil {
				for _, c := range app.registry.ListCapabilities() {
					fmt.Fprintf(out, "  %s -> %s\n", c, strings.Join(app.registry.GetFallbackChain(c), ", "))
				}
			}
			report("model registry", err)

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}

func printBanner(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║             CineGraph v"+Version+"                  ║")
	fmt.Fprintln(out, "║      Movie questions, graph and vectors       ║")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════╝")
	fmt.Fprintln(out, "Type /help for commands, exit to quit.")
}
