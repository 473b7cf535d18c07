// Package graph provides read and write access to the movie property graph in Neo4j.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/c360studio/cinegraph/cypher"
)

// Row is one result record keyed by output column.
type Row map[string]any

// Reader executes read-only queries.
type Reader interface {
	RunRead(ctx context.Context, q cypher.Query) ([]Row, error)
}

// Writer executes statements in a single write transaction.
type Writer interface {
	ExecuteWrite(ctx context.Context, qs []cypher.Query) error
}

// Config holds connection settings for the graph database.
type Config struct {
	URI          string
	Username     string
	Password     string
	Database     string
	MaxPoolSize  int
	QueryTimeout time.Duration
}

// Store is a long-lived Neo4j connection pool. It is safe for concurrent use.
type Store struct {
	driver neo4j.DriverWithContext
	cfg    Config
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates the driver and verifies connectivity.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graph uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
		})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	s := &Store{driver: driver, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	s.logger.Debug("Connected to graph", "uri", cfg.URI, "database", cfg.Database)
	return s, nil
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// RunRead executes q in a read transaction and returns normalized rows.
func (s *Store) RunRead(ctx context.Context, q cypher.Query) ([]Row, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(ctx)

	start := time.Now()
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, q.Text, q.Params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(records))
		for _, rec := range records {
			rows = append(rows, recordRow(rec.Keys, rec.Values))
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("run read query: %w", err)
	}

	rows := out.([]Row)
	s.logger.Debug("Graph read",
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())
	return rows, nil
}

// ExecuteWrite runs all statements in one write transaction.
func (s *Store) ExecuteWrite(ctx context.Context, qs []cypher.Query) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range qs {
			result, err := tx.Run(ctx, q.Text, q.Params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("execute write: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}
