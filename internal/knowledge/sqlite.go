// Package knowledge provides storage backends for the knowledge corpus.
//
// This file implements an SQLite-backed knowledge store. Embeddings are
// stored as JSON arrays; signal updates run inside a transaction so that
// concurrent feedback for the same chunk never loses an update.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/canokcuer/wellspring/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is an SQLite-backed knowledge store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite knowledge store with the given DSN.
// The DSN should be a file path to the SQLite database file. If the
// directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("knowledge.NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("knowledge SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run knowledge migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("knowledge SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddChunk appends a chunk to the corpus.
func (s *SQLiteStore) AddChunk(ctx context.Context, chunk models.KnowledgeChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}
	embJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		slog.Error("SQLiteStore AddChunk embedding marshal failed", "error", err, "id", chunk.ID)
		return fmt.Errorf("failed to marshal embedding for chunk %s: %w", chunk.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_chunks (id, text, source, embedding, signal_score, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Text, chunk.Source, string(embJSON), chunk.SignalScore, chunk.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddChunk failed", "error", err, "id", chunk.ID)
		return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
	}
	slog.Debug("SQLiteStore AddChunk succeeded", "id", chunk.ID, "source", chunk.Source)
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*models.KnowledgeChunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, source, embedding, signal_score, created_at FROM knowledge_chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}
	if err != nil {
		slog.Error("SQLiteStore GetChunk failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return chunk, nil
}

// ListChunks returns every chunk in the corpus in insertion order.
func (s *SQLiteStore) ListChunks(ctx context.Context) ([]models.KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, embedding, signal_score, created_at FROM knowledge_chunks ORDER BY created_at, id`)
	if err != nil {
		slog.Error("SQLiteStore ListChunks query failed", "error", err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.KnowledgeChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			slog.Error("SQLiteStore ListChunks scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListChunks rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}
	slog.Debug("SQLiteStore ListChunks succeeded", "count", len(chunks))
	return chunks, nil
}

// ApplySignal atomically applies a read-modify-write to a chunk's signal
// score inside a transaction.
func (s *SQLiteStore) ApplySignal(ctx context.Context, id string, apply func(old float64) float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("SQLiteStore ApplySignal begin failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to begin signal transaction: %w", err)
	}
	defer tx.Rollback()

	var old float64
	err = tx.QueryRowContext(ctx, `SELECT signal_score FROM knowledge_chunks WHERE id = ?`, id).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}
	if err != nil {
		slog.Error("SQLiteStore ApplySignal read failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to read signal for chunk %s: %w", id, err)
	}

	newScore := apply(old)
	if _, err := tx.ExecContext(ctx, `UPDATE knowledge_chunks SET signal_score = ? WHERE id = ?`, newScore, id); err != nil {
		slog.Error("SQLiteStore ApplySignal update failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to update signal for chunk %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore ApplySignal commit failed", "error", err, "id", id)
		return 0, fmt.Errorf("failed to commit signal update for chunk %s: %w", id, err)
	}
	slog.Debug("SQLiteStore ApplySignal succeeded", "id", id, "newScore", newScore)
	return newScore, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing knowledge SQLite database connection")
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*models.KnowledgeChunk, error) {
	var chunk models.KnowledgeChunk
	var embJSON string
	if err := row.Scan(&chunk.ID, &chunk.Text, &chunk.Source, &embJSON, &chunk.SignalScore, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	if embJSON != "" {
		if err := json.Unmarshal([]byte(embJSON), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for chunk %s: %w", chunk.ID, err)
		}
	}
	return &chunk, nil
}
