// Package models defines sub-agent request and response structures for the
// three-agent content architecture.
package models

import (
	"encoding/json"
	"fmt"
)

// ConfidenceLevel is a coarse indicator attached to wellness facts when
// verification coverage is incomplete.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// WellnessRequest is the input to the wellness advisor agent.
type WellnessRequest struct {
	Query          string       `json:"query"`
	Brief          ContentBrief `json:"brief"`
	Context        string       `json:"context,omitempty"`
	SpecificTopics []string     `json:"specific_topics,omitempty"`
}

// ProgramDetail describes a single wellness program referenced by content.
type ProgramDetail struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CenterInfo describes a single wellness center referenced by content.
type CenterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// WellnessResponse carries verified facts and guidance for the storyteller.
// Every verified fact is backed by a retrieved knowledge chunk; claims the
// advisor could not verify are folded into Warnings instead. SourceChunkIDs
// records provenance so accepted or rejected drafts can reinforce the chunks
// that produced them.
type WellnessResponse struct {
	VerifiedFacts    []string        `json:"verified_facts"`
	ProgramDetails   []ProgramDetail `json:"program_details,omitempty"`
	CenterInfo       []CenterInfo    `json:"center_info,omitempty"`
	WellnessGuidance string          `json:"wellness_guidance"`
	ConfidenceLevel  ConfidenceLevel `json:"confidence_level"`
	Warnings         []string        `json:"warnings,omitempty"`
	SourceChunkIDs   []string        `json:"source_chunk_ids,omitempty"`
}

// StorytellingRequest is the input to the storyteller agent. It carries the
// entire frozen brief and the full wellness response; partial context is a
// known failure mode the storyteller must avoid.
type StorytellingRequest struct {
	Brief               ContentBrief     `json:"brief"`
	Wellness            WellnessResponse `json:"wellness"`
	UserVoice           string           `json:"user_voice,omitempty"`
	StyleGuidance       string           `json:"style_guidance,omitempty"`
	ConversationContext string           `json:"conversation_context,omitempty"`
	PreviousFeedback    string           `json:"previous_feedback,omitempty"`
	IterationNumber     int              `json:"iteration_number"`
}

// StorytellingResponse is the structured content draft produced by the
// storyteller.
type StorytellingResponse struct {
	Hook             string   `json:"hook"`
	HookType         string   `json:"hook_type"`
	Content          string   `json:"content"`
	CallToAction     string   `json:"call_to_action"`
	Hashtags         []string `json:"hashtags,omitempty"`
	OpenLoops        []string `json:"open_loops,omitempty"`
	Framework        string   `json:"framework"`
	WordCount        int      `json:"word_count"`
	AlternativeHooks []string `json:"alternative_hooks,omitempty"`
	ConfidenceNotes  string   `json:"confidence_notes,omitempty"`
}

// FeedbackRequest is the input to the feedback analyzer agent.
type FeedbackRequest struct {
	Feedback      string               `json:"feedback"`
	Story         StorytellingResponse `json:"story"`
	Brief         ContentBrief         `json:"brief"`
	WellnessFacts []string             `json:"wellness_facts,omitempty"`
}

// FeedbackType classifies user feedback for routing.
type FeedbackType string

const (
	FeedbackWellness     FeedbackType = "wellness"
	FeedbackStorytelling FeedbackType = "storytelling"
	FeedbackBoth         FeedbackType = "both"
	FeedbackApproved     FeedbackType = "approved"
)

// IsValidFeedbackType checks if the given feedback type is supported.
func IsValidFeedbackType(f FeedbackType) bool {
	switch f {
	case FeedbackWellness, FeedbackStorytelling, FeedbackBoth, FeedbackApproved:
		return true
	default:
		return false
	}
}

// FeedbackAnalysis is the categorized result of user feedback on a draft.
// FeedbackType is "both" when issues were detected in both wellness accuracy
// and storytelling quality; "approved" only when no issues and no specific
// requests were found.
type FeedbackAnalysis struct {
	FeedbackType       FeedbackType `json:"feedback_type"`
	WellnessIssues     []string     `json:"wellness_issues,omitempty"`
	StorytellingIssues []string     `json:"storytelling_issues,omitempty"`
	SpecificRequests   []string     `json:"specific_requests,omitempty"`
	SuggestedAction    string       `json:"suggested_action,omitempty"`
}

// ToJSON serializes the wellness response to a JSON string.
func (w *WellnessResponse) ToJSON() (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wellness response: %w", err)
	}
	return string(data), nil
}

// ToJSON serializes the storytelling response to a JSON string.
func (s *StorytellingResponse) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal storytelling response: %w", err)
	}
	return string(data), nil
}
