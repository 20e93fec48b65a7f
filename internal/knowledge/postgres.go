// Package knowledge provides storage backends for the knowledge corpus.
//
// This file implements a PostgreSQL-backed knowledge store. Signal updates
// take a row lock (SELECT ... FOR UPDATE) so that concurrent feedback for
// the same chunk is serialized by the database.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/canokcuer/wellspring/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a PostgreSQL-backed knowledge store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL knowledge store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("knowledge.NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("knowledge PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run knowledge migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("knowledge Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddChunk appends a chunk to the corpus.
func (s *PostgresStore) AddChunk(ctx context.Context, chunk models.KnowledgeChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}
	embJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		slog.Error("PostgresStore AddChunk embedding marshal failed", "error", err, "id", chunk.ID)
		return fmt.Errorf("failed to marshal embedding for chunk %s: %w", chunk.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_chunks (id, text, source, embedding, signal_score, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		chunk.ID, chunk.Text, chunk.Source, string(embJSON), chunk.SignalScore, chunk.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddChunk failed", "error", err, "id", chunk.ID)
		return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
	}
	slog.Debug("PostgresStore AddChunk succeeded", "id", chunk.ID, "source", chunk.Source)
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *PostgresStore) GetChunk(ctx context.Context, id string) (*models.KnowledgeChunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, source, embedding, signal_score, created_at FROM knowledge_chunks WHERE id = $1`, id)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}
	if err != nil {
		slog.Error("PostgresStore GetChunk failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return chunk, nil
}

// ListChunks returns every chunk in the corpus in insertion order.
func (s *PostgresStore) ListChunks(ctx context.Context) ([]models.KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, embedding, signal_score, created_at FROM knowledge_chunks ORDER BY created_at, id`)
	if err != nil {
		slog.Error("PostgresStore ListChunks query failed", "error", err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.KnowledgeChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			slog.Error("PostgresStore ListChunks scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListChunks rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}
	slog.Debug("PostgresStore ListChunks succeeded", "count", len(chunks))
	return chunks, nil
}

// ApplySignal atomically applies a read-modify-write to a chunk's signal
// score under a row lock.
func (s *PostgresStore) ApplySignal(ctx context.Context, id string, apply func(old float64) float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("PostgresStore ApplySignal begin failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to begin signal transaction: %w", err)
	}
	defer tx.Rollback()

	var old float64
	err = tx.QueryRowContext(ctx, `SELECT signal_score FROM knowledge_chunks WHERE id = $1 FOR UPDATE`, id).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}
	if err != nil {
		slog.Error("PostgresStore ApplySignal read failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to read signal for chunk %s: %w", id, err)
	}

	newScore := apply(old)
	if _, err := tx.ExecContext(ctx, `UPDATE knowledge_chunks SET signal_score = $1 WHERE id = $2`, newScore, id); err != nil {
		slog.Error("PostgresStore ApplySignal update failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to update signal for chunk %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore ApplySignal commit failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to commit signal update for chunk %s: %w", id, err)
	}
	slog.Debug("PostgresStore ApplySignal succeeded", "id", id, "newScore", newScore)
	return newScore, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing knowledge Postgres database connection")
	return s.db.Close()
}
