package flow

import (
	"context"
	"fmt"

	"github.com/canokcuer/wellspring/internal/brief"
	"github.com/canokcuer/wellspring/internal/models"
)

// Snapshot is a read-only view of a conversation's progress, used by the API
// to report where a conversation stands without advancing it.
type Snapshot struct {
	ConversationID string                       `json:"conversation_id"`
	State          models.StateType             `json:"state"`
	Iteration      int                          `json:"iteration"`
	Brief          models.ContentBrief          `json:"brief"`
	MissingFields  []string                     `json:"missing_fields,omitempty"`
	Draft          *models.StorytellingResponse `json:"draft,omitempty"`
	Revisions      int                          `json:"revisions"`
}

// Snapshot returns the current state of a conversation. It never mutates flow
// state; an unknown conversation yields models.ErrConversationNotFound.
func (o *Orchestrator) Snapshot(ctx context.Context, conversationID string) (*Snapshot, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}

	state, err := o.stateManager.GetCurrentState(ctx, conversationID, models.FlowTypeContent)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrConversationNotFound, conversationID)
	}

	record, err := loadRecord(ctx, o.stateManager, conversationID)
	if err != nil {
		return nil, err
	}

	report := brief.Check(record.Brief)
	return &Snapshot{
		ConversationID: conversationID,
		State:          state,
		Iteration:      record.Iteration,
		Brief:          record.Brief.Clone(),
		MissingFields:  report.MissingFields,
		Draft:          record.Story,
		Revisions:      len(record.History),
	}, nil
}
