// Package models defines flow type definitions to avoid circular imports.
package models

import (
	"errors"
	"time"
)

// ErrConversationNotFound indicates that no flow state exists for the
// requested conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// FlowType represents a specific type of conversation flow.
type FlowType string

// StateType represents a specific state within a flow.
type StateType string

// DataKey represents a key for storing state-specific data.
type DataKey string

// Flow type constants.
const (
	FlowTypeContent FlowType = "content"
)

// State constants for the content generation flow. ROUTING_* states loop
// back into consulting states with the iteration counter incremented;
// FINALIZED is terminal.
const (
	StateBriefing           StateType = "BRIEFING"
	StateConsultingWellness StateType = "CONSULTING_WELLNESS"
	StateConsultingStory    StateType = "CONSULTING_STORY"
	StateReviewing          StateType = "REVIEWING"
	StateAwaitingFeedback   StateType = "AWAITING_FEEDBACK"
	StateRoutingWellness    StateType = "ROUTING_WELLNESS"
	StateRoutingStory       StateType = "ROUTING_STORY"
	StateRoutingBoth        StateType = "ROUTING_BOTH"
	StateFinalized          StateType = "FINALIZED"
)

// IsTerminalState reports whether the state machine can advance further.
func IsTerminalState(s StateType) bool {
	return s == StateFinalized
}

// Data key constants for the content generation flow.
const (
	// DataKeyConversationRecord holds the serialized conversation record
	// (brief, iteration counters, latest responses, audit history).
	DataKeyConversationRecord DataKey = "conversationRecord"
)

// FlowState represents the current state of a conversation in a flow.
type FlowState struct {
	ConversationID string            `json:"conversation_id"`
	FlowType       FlowType          `json:"flow_type"`
	CurrentState   StateType         `json:"current_state"`
	StateData      map[DataKey]string `json:"state_data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
