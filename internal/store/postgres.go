// Package store provides storage backends for conversation flow state.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/canokcuer/wellspring/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a PostgreSQL-backed flow state store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("store.NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
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

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveFlowState stores or updates flow state for a conversation.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	stateDataJSON, err := marshalStateData(state.StateData)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState JSON marshal failed", "error", err, "conversationID", state.ConversationID)
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO flow_states (conversation_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id, flow_type) DO UPDATE
		SET current_state = EXCLUDED.current_state,
		    state_data = EXCLUDED.state_data,
		    updated_at = EXCLUDED.updated_at`,
		state.ConversationID, state.FlowType, state.CurrentState,
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "conversationID", state.ConversationID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("PostgresStore SaveFlowState succeeded", "conversationID", state.ConversationID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a conversation.
func (s *PostgresStore) GetFlowState(conversationID, flowType string) (*models.FlowState, error) {
	query := `SELECT conversation_id, flow_type, current_state, state_data, created_at, updated_at
			  FROM flow_states WHERE conversation_id = $1 AND flow_type = $2`

	var state models.FlowState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(query, conversationID, flowType).Scan(
		&state.ConversationID, &state.FlowType, &state.CurrentState,
		&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetFlowState not found", "conversationID", conversationID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "conversationID", conversationID, "flowType", flowType)
		return nil, err
	}

	state.StateData = unmarshalStateData(stateDataJSON.String, conversationID)
	slog.Debug("PostgresStore GetFlowState found", "conversationID", conversationID, "flowType", flowType, "state", state.CurrentState)
	return &state, nil
}

// DeleteFlowState removes flow state for a conversation.
func (s *PostgresStore) DeleteFlowState(conversationID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE conversation_id = $1 AND flow_type = $2`, conversationID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "conversationID", conversationID, "flowType", flowType)
		return err
	}
	slog.Debug("PostgresStore DeleteFlowState succeeded", "conversationID", conversationID, "flowType", flowType)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
