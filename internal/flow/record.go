package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canokcuer/wellspring/internal/models"
)

// HistoryEntry is an audit record of one completed iteration: the draft the
// user saw and the feedback it drew. History is retained but never
// reprocessed.
type HistoryEntry struct {
	Iteration int                          `json:"iteration"`
	Story     *models.StorytellingResponse `json:"story,omitempty"`
	Feedback  string                       `json:"feedback,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

// ConversationRecord is the full conversation-scoped working set: the brief
// being accumulated, the latest response from each sub-agent, and the audit
// history. It serializes to a single opaque blob in flow state, so any store
// backend can persist it.
type ConversationRecord struct {
	Brief            models.ContentBrief          `json:"brief"`
	Iteration        int                          `json:"iteration"`
	Wellness         *models.WellnessResponse     `json:"wellness,omitempty"`
	Story            *models.StorytellingResponse `json:"story,omitempty"`
	PreviousFeedback string                       `json:"previous_feedback,omitempty"`
	History          []HistoryEntry               `json:"history,omitempty"`
}

// loadRecord retrieves the conversation record, creating a fresh one when the
// conversation is new.
func loadRecord(ctx context.Context, sm StateManager, conversationID string) (*ConversationRecord, error) {
	raw, err := sm.GetStateData(ctx, conversationID, models.FlowTypeContent, models.DataKeyConversationRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation record: %w", err)
	}
	if raw == "" {
		now := time.Now()
		return &ConversationRecord{
			Brief: models.ContentBrief{
				ConversationID: conversationID,
				CreatedAt:      now,
				UpdatedAt:      now,
			},
			Iteration: 1,
		}, nil
	}

	var record ConversationRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation record: %w", err)
	}
	return &record, nil
}

// saveRecord persists the conversation record back into flow state.
func saveRecord(ctx context.Context, sm StateManager, conversationID string, record *ConversationRecord) error {
	record.Brief.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation record: %w", err)
	}
	if err := sm.SetStateData(ctx, conversationID, models.FlowTypeContent, models.DataKeyConversationRecord, string(data)); err != nil {
		return fmt.Errorf("failed to save conversation record: %w", err)
	}
	return nil
}

// archiveIteration appends the current draft and its feedback to history
// before a revision overwrites them.
func (r *ConversationRecord) archiveIteration(feedback string) {
	r.History = append(r.History, HistoryEntry{
		Iteration: r.Iteration,
		Story:     r.Story,
		Feedback:  feedback,
		Timestamp: time.Now(),
	})
}
