// Package main implements a mock LLM server for running cinegraph offline.
// It serves OpenAI-compatible /v1/chat/completions responses from fixture
// files, routing by the "model" field of the request.
//
// Usage:
//
//	mock-llm --fixtures ./cmd/mock-llm/testdata/fixtures --addr :11434
//
// Point every capability of the model registry at an "ollama" endpoint whose
// url is http://localhost:11434/v1 and whose model names a fixture, for
// example mock-planning. testdata/models.yaml is such a registry.
//
// Fixtures are named by model: mock-planning.json holds the planner reply.
// Prose replies such as rendered answers use .txt. Numbered files
// (mock-planning.1.json, mock-planning.2.json) are served in order, then the
// base file repeats, which scripts retry loops.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir string
		addr       string
	)

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "Serve scripted chat completions from fixture files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			if fixtureDir == "" {
				return errors.New("--fixtures or MOCK_LLM_FIXTURES is required")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			fixtures, err := loadFixtures(fixtureDir)
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}

			models := make([]string, 0, len(fixtures))
			for model := range fixtures {
				models = append(models, model)
			}
			sort.Strings(models)
			for _, model := range models {
				logger.Info("Loaded fixtures", "model", model, "count", len(fixtures[model]))
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newMockServer(fixtures, logger).routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("Mock LLM server listening", "addr", addr)
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory containing fixture files")
	cmd.Flags().StringVar(&addr, "addr", ":11434", "Listen address")
	return cmd
}
