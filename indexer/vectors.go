package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/cinegraph/vector"
)

const (
	// DefaultEmbedConcurrency bounds parallel embedding calls.
	DefaultEmbedConcurrency = 5

	// DefaultUpsertBatch is the number of vectors sent per upsert.
	DefaultUpsertBatch = 100

	// MinChunkLength drops separators and stray headings.
	MinChunkLength = 20
)

// chunkSeparator is a line of five or more dashes.
var chunkSeparator = regexp.MustCompile(`\n-{5,}\n`)

// SplitChunks splits document text on separator lines and drops chunks
// shorter than MinChunkLength.
func SplitChunks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var chunks []string
	for _, block := range chunkSeparator.Split(text, -1) {
		block = strings.TrimSpace(block)
		if len(block) < MinChunkLength {
			continue
		}
		chunks = append(chunks, block)
	}
	return chunks
}

// Upserter writes vectors to the index.
type Upserter interface {
	Upsert(ctx context.Context, records []vector.Record) (int, error)
}

// VectorStats summarises a vector build.
type VectorStats struct {
	Files    int `json:"files"`
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
	Upserted int `json:"upserted"`
}

// VectorBuilder chunks text files, embeds each chunk and upserts the vectors.
type VectorBuilder struct {
	embedder     vector.Embedder
	index        Upserter
	logger       *slog.Logger
	concurrency  int
	batchSize    int
	embedRetries int
	retryDelay   time.Duration
}

// VectorOption configures a VectorBuilder.
type VectorOption func(*VectorBuilder)

// WithVectorLogger sets the logger.
func WithVectorLogger(l *slog.Logger) VectorOption {
	return func(b *VectorBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithEmbedConcurrency bounds parallel embedding calls.
func WithEmbedConcurrency(n int) VectorOption {
	return func(b *VectorBuilder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithUpsertBatch sets the upsert batch size.
func WithUpsertBatch(n int) VectorOption {
	return func(b *VectorBuilder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithEmbedRetries sets how many times a failed embedding is attempted and
// the delay before the second attempt. The delay grows linearly.
func WithEmbedRetries(attempts int, delay time.Duration) VectorOption {
	return func(b *VectorBuilder) {
		if attempts > 0 {
			b.embedRetries = attempts
		}
		b.retryDelay = delay
	}
}

// NewVectorBuilder creates a VectorBuilder.
func NewVectorBuilder(embedder vector.Embedder, index Upserter, opts ...VectorOption) *VectorBuilder {
	b := &VectorBuilder{
		embedder:     embedder,
		index:        index,
		logger:       slog.Default(),
		concurrency:  DefaultEmbedConcurrency,
		batchSize:    DefaultUpsertBatch,
		embedRetries: 3,
		retryDelay:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type chunk struct {
	id     string
	source string
	text   string
}

// Build indexes every file. Chunks whose embedding keeps failing are skipped
// and counted; upsert failures abort the build.
func (b *VectorBuilder) Build(ctx context.Context, files []string) (VectorStats, error) {
	stats := VectorStats{Files: len(files)}

	var chunks []chunk
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", path, err)
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for n, text := range SplitChunks(string(data)) {
			chunks = append(chunks, chunk{
				id:     fmt.Sprintf("%s-%d", stem, n),
				source: filepath.Base(path),
				text:   text,
			})
		}
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		return stats, fmt.Errorf("no chunks found in %d files", len(files))
	}
	b.logger.Info("Embedding chunks", "chunks", len(chunks), "concurrency", b.concurrency)

	records := make([]*vector.Record, len(chunks))
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			values, err := b.embed(gctx, c.text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("Embedding failed, skipping chunk", "id", c.id, "error", err)
				failed.Add(1)
				return nil
			}
			records[i] = &vector.Record{
				ID:       c.id,
				Values:   values,
				Metadata: map[string]any{"text": c.text, "source": c.source},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.Failed = int(failed.Load())

	batch := make([]vector.Record, 0, b.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := b.index.Upsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		stats.Upserted += n
		b.logger.Info("Upserted batch", "vectors", len(batch), "total", stats.Upserted)
		batch = batch[:0]
		return nil
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		stats.Embedded++
		batch = append(batch, *r)
		if len(batch) == b.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	b.logger.Info("Vector store built",
		"chunks", stats.Chunks,
		"embedded", stats.Embedded,
		"failed", stats.Failed,
		"upserted", stats.Upserted)
	return stats, nil
}

func (b *VectorBuilder) embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := range b.embedRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * b.retryDelay):
			}
		}
		values, err := b.embedder.Embed(ctx, text)
		if err == nil {
			return values, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
