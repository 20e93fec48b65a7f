// Package store provides storage backends for conversation flow state.
//
// Flow state is keyed by conversation and flow type; the conversation record
// itself travels as an opaque JSON blob inside StateData.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/canokcuer/wellspring/internal/models"
)

// Store persists conversation flow state. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveFlowState stores or updates flow state for a conversation.
	SaveFlowState(state models.FlowState) error

	// GetFlowState retrieves flow state for a conversation. Returns
	// (nil, nil) when no state exists.
	GetFlowState(conversationID, flowType string) (*models.FlowState, error)

	// DeleteFlowState removes flow state for a conversation.
	DeleteFlowState(conversationID, flowType string) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// IsPostgresDSN reports whether the DSN targets PostgreSQL rather than an
// SQLite file path.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// InMemoryStore is a thread-safe in-memory flow state store used in tests and
// deployments without a database DSN.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.FlowState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.FlowState)}
}

func stateKey(conversationID, flowType string) string {
	return conversationID + "|" + flowType
}

// SaveFlowState stores or updates flow state for a conversation.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the map so callers can't mutate stored state behind the lock.
	if state.StateData != nil {
		data := make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			data[k] = v
		}
		state.StateData = data
	}
	state.UpdatedAt = time.Now()
	s.states[stateKey(state.ConversationID, string(state.FlowType))] = state
	return nil
}

// GetFlowState retrieves flow state for a conversation.
func (s *InMemoryStore) GetFlowState(conversationID, flowType string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(conversationID, flowType)]
	if !ok {
		return nil, nil
	}
	cp := state
	if state.StateData != nil {
		cp.StateData = make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			cp.StateData[k] = v
		}
	}
	return &cp, nil
}

// DeleteFlowState removes flow state for a conversation.
func (s *InMemoryStore) DeleteFlowState(conversationID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(conversationID, flowType))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
