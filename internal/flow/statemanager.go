// Package flow implements the content generation conversation: the
// orchestration state machine, the briefing dialogue, and the draft review
// step.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/store"
)

// StateManager handles conversation state transitions and state data access.
type StateManager interface {
	// GetCurrentState retrieves the current state for a conversation. Returns
	// empty string when the conversation has no state yet.
	GetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType) (models.StateType, error)

	// SetCurrentState updates the current state for a conversation.
	SetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType, state models.StateType) error

	// GetStateData retrieves data associated with the conversation's state.
	GetStateData(ctx context.Context, conversationID string, flowType models.FlowType, key models.DataKey) (string, error)

	// SetStateData stores data associated with the conversation's state.
	SetStateData(ctx context.Context, conversationID string, flowType models.FlowType, key models.DataKey, value string) error

	// ResetState removes all state for a conversation.
	ResetState(ctx context.Context, conversationID string, flowType models.FlowType) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current state for a conversation.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType) (models.StateType, error) {
	flowState, err := sm.store.GetFlowState(conversationID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "conversationID", conversationID, "flowType", flowType)
		return "", err
	}
	if flowState == nil {
		slog.Debug("StateManager GetCurrentState not found", "conversationID", conversationID, "flowType", flowType)
		return "", nil
	}
	return flowState.CurrentState, nil
}

// SetCurrentState updates the current state for a conversation.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, conversationID string, flowType models.FlowType, state models.StateType) error {
	flowState, err := sm.store.GetFlowState(conversationID, string(flowType))
	if err != nil {
		slog.Error("StateManager SetCurrentState get error", "error", err, "conversationID", conversationID, "flowType", flowType)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			ConversationID: conversationID,
			FlowType:       flowType,
			CurrentState:   state,
			StateData:      make(map[models.DataKey]string),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	} else {
		flowState.CurrentState = state
		flowState.UpdatedAt = now
	}

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StateManager SetCurrentState save error", "error", err, "conversationID", conversationID, "flowType", flowType, "state", state)
		return err
	}
	slog.Debug("StateManager SetCurrentState succeeded", "conversationID", conversationID, "flowType", flowType, "state", state)
	return nil
}

// GetStateData retrieves data associated with the conversation's state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, conversationID string, flowType models.FlowType, key models.DataKey) (string, error) {
	flowState, err := sm.store.GetFlowState(conversationID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetStateData error", "error", err, "conversationID", conversationID, "flowType", flowType, "key", key)
		return "", err
	}
	if flowState == nil || flowState.StateData == nil {
		return "", nil
	}
	return flowState.StateData[key], nil
}

// SetStateData stores data associated with the conversation's state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, conversationID string, flowType models.FlowType, key models.DataKey, value string) error {
	flowState, err := sm.store.GetFlowState(conversationID, string(flowType))
	if err != nil {
		slog.Error("StateManager SetStateData get error", "error", err, "conversationID", conversationID, "flowType", flowType, "key", key)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			ConversationID: conversationID,
			FlowType:       flowType,
			CurrentState:   models.StateBriefing,
			StateData:      make(map[models.DataKey]string),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	if flowState.StateData == nil {
		flowState.StateData = make(map[models.DataKey]string)
	}
	flowState.StateData[key] = value
	flowState.UpdatedAt = now

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StateManager SetStateData save error", "error", err, "conversationID", conversationID, "flowType", flowType, "key", key)
		return err
	}
	return nil
}

// ResetState removes all state for a conversation.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, conversationID string, flowType models.FlowType) error {
	if err := sm.store.DeleteFlowState(conversationID, string(flowType)); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "conversationID", conversationID, "flowType", flowType)
		return err
	}
	slog.Debug("StateManager ResetState succeeded", "conversationID", conversationID, "flowType", flowType)
	return nil
}
