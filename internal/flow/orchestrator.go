package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/canokcuer/wellspring/internal/brief"
	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/models"
)

// DefaultMaxIterations caps revision loops per conversation. When the cap is
// reached the draft is finalized with a note instead of looping forever.
const DefaultMaxIterations = 5

// WellnessConsulter is the wellness advisor surface the orchestrator calls.
type WellnessConsulter interface {
	Consult(ctx context.Context, req models.WellnessRequest) (*models.WellnessResponse, error)
}

// StoryConsulter is the storyteller surface the orchestrator calls.
type StoryConsulter interface {
	Consult(ctx context.Context, req models.StorytellingRequest) (*models.StorytellingResponse, error)
}

// FeedbackConsulter is the feedback analyzer surface the orchestrator calls.
type FeedbackConsulter interface {
	Consult(ctx context.Context, req models.FeedbackRequest) (*models.FeedbackAnalysis, error)
}

// SignalReporter applies feedback outcomes to knowledge chunk signal scores.
type SignalReporter interface {
	Update(ctx context.Context, chunkID string, outcome models.SignalOutcome) (float64, error)
}

// Orchestrator drives the content generation conversation. It owns the brief
// and the conversation-scoped responses; sub-agents are stateless and the
// knowledge store is shared. One conversation is strictly sequential: no two
// sub-agent calls for the same conversation are ever in flight at once.
type Orchestrator struct {
	stateManager  StateManager
	genaiClient   genai.ClientInterface
	wellness      WellnessConsulter
	storyteller   StoryConsulter
	feedback      FeedbackConsulter
	signals       SignalReporter
	maxIterations int
}

// NewOrchestrator creates a content flow orchestrator.
func NewOrchestrator(sm StateManager, client genai.ClientInterface, wellness WellnessConsulter, storyteller StoryConsulter, feedback FeedbackConsulter, signals SignalReporter) *Orchestrator {
	return &Orchestrator{
		stateManager:  sm,
		genaiClient:   client,
		wellness:      wellness,
		storyteller:   storyteller,
		feedback:      feedback,
		signals:       signals,
		maxIterations: DefaultMaxIterations,
	}
}

// HandleTurn processes one user message and returns the assistant reply plus
// the resulting state, which the front end uses purely for display. Sub-agent
// failures keep the machine in the calling state so the user can retry the
// stage with another message.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, userMessage string) (string, models.StateType, error) {
	if conversationID == "" {
		return "", "", fmt.Errorf("conversation ID cannot be empty")
	}

	state, err := o.stateManager.GetCurrentState(ctx, conversationID, models.FlowTypeContent)
	if err != nil {
		return "", "", fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == "" {
		state = models.StateBriefing
		if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, state); err != nil {
			return "", "", fmt.Errorf("failed to initialize conversation state: %w", err)
		}
	}

	record, err := loadRecord(ctx, o.stateManager, conversationID)
	if err != nil {
		return "", "", err
	}

	slog.Debug("Orchestrator HandleTurn", "conversationID", conversationID, "state", state, "iteration", record.Iteration)

	switch state {
	case models.StateBriefing:
		return o.handleBriefing(ctx, conversationID, record, userMessage)
	case models.StateConsultingWellness, models.StateRoutingWellness, models.StateRoutingBoth:
		// A failed wellness stage left the machine here; this turn retries it.
		return o.runGeneration(ctx, conversationID, record, false)
	case models.StateConsultingStory, models.StateReviewing, models.StateRoutingStory:
		return o.runGeneration(ctx, conversationID, record, true)
	case models.StateAwaitingFeedback:
		return o.handleFeedback(ctx, conversationID, record, userMessage)
	case models.StateFinalized:
		return "This conversation is complete. Start a new conversation to create more content.", models.StateFinalized, nil
	default:
		return "", state, fmt.Errorf("unknown conversation state %q", state)
	}
}

// handleBriefing merges answered fields into the brief and either asks the
// next question or, once the brief is complete, starts generation.
func (o *Orchestrator) handleBriefing(ctx context.Context, conversationID string, record *ConversationRecord, userMessage string) (string, models.StateType, error) {
	if strings.TrimSpace(userMessage) != "" {
		if err := extractBriefFields(ctx, o.genaiClient, record, userMessage); err != nil {
			// Extraction failure is recoverable: keep the brief as-is and
			// re-ask instead of failing the turn.
			slog.Warn("Orchestrator brief extraction failed", "error", err, "conversationID", conversationID)
		}
	}
	if err := saveRecord(ctx, o.stateManager, conversationID, record); err != nil {
		return "", models.StateBriefing, err
	}

	report := brief.Check(record.Brief)
	if !report.Complete() {
		slog.Debug("Orchestrator brief incomplete", "conversationID", conversationID, "missing", len(report.MissingFields))
		return nextBriefQuestion(report), models.StateBriefing, nil
	}

	return o.runGeneration(ctx, conversationID, record, false)
}

// runGeneration drives the consulting pipeline: wellness, then storytelling,
// then review. When startAtStory is true the existing wellness response is
// reused (storytelling-only revisions and retries of a failed story stage).
func (o *Orchestrator) runGeneration(ctx context.Context, conversationID string, record *ConversationRecord, startAtStory bool) (string, models.StateType, error) {
	if !startAtStory {
		if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateConsultingWellness); err != nil {
			return "", "", err
		}

		wellnessResp, err := o.wellness.Consult(ctx, models.WellnessRequest{
			Query:          buildWellnessQuery(record.Brief),
			Brief:          record.Brief.Clone(),
			Context:        record.PreviousFeedback,
			SpecificTopics: append(append([]string{}, record.Brief.SpecificPrograms...), record.Brief.SpecificCenters...),
		})
		if err != nil {
			slog.Error("Orchestrator wellness stage failed", "error", err, "conversationID", conversationID)
			saveErr := saveRecord(ctx, o.stateManager, conversationID, record)
			if saveErr != nil {
				slog.Error("Orchestrator failed to save record after wellness failure", "error", saveErr, "conversationID", conversationID)
			}
			return "I couldn't verify the wellness facts for your content just now. Send any message to retry.", models.StateConsultingWellness, nil
		}
		record.Wellness = wellnessResp
	}

	if record.Wellness == nil {
		// Story-only entry without a wellness response means state was
		// corrupted; restart generation from the wellness stage.
		return o.runGeneration(ctx, conversationID, record, false)
	}

	if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateConsultingStory); err != nil {
		return "", "", err
	}

	story, err := o.consultStoryWithReview(ctx, conversationID, record)
	if err != nil {
		slog.Error("Orchestrator storytelling stage failed", "error", err, "conversationID", conversationID)
		if saveErr := saveRecord(ctx, o.stateManager, conversationID, record); saveErr != nil {
			slog.Error("Orchestrator failed to save record after story failure", "error", saveErr, "conversationID", conversationID)
		}
		return "I couldn't draft the content just now. Send any message to retry.", models.StateConsultingStory, nil
	}
	record.Story = story

	if err := saveRecord(ctx, o.stateManager, conversationID, record); err != nil {
		return "", "", err
	}
	if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateAwaitingFeedback); err != nil {
		return "", "", err
	}
	return formatDraft(record), models.StateAwaitingFeedback, nil
}

// consultStoryWithReview calls the storyteller and reviews the draft. A draft
// failing review triggers at most one silent regeneration; a second failure
// surfaces the draft as-is with the issues attached as confidence notes.
func (o *Orchestrator) consultStoryWithReview(ctx context.Context, conversationID string, record *ConversationRecord) (*models.StorytellingResponse, error) {
	req := models.StorytellingRequest{
		Brief:            record.Brief.Clone(),
		Wellness:         *record.Wellness,
		PreviousFeedback: record.PreviousFeedback,
		IterationNumber:  record.Iteration,
	}

	story, err := o.storyteller.Consult(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateReviewing); err != nil {
		return nil, err
	}
	issues := reviewDraft(story, record.Wellness, record.Brief)
	if len(issues) == 0 {
		return story, nil
	}

	slog.Info("Orchestrator review flagged draft, regenerating once", "conversationID", conversationID, "issues", len(issues))
	regenReq := req
	regenReq.PreviousFeedback = strings.TrimSpace(req.PreviousFeedback + "\nInternal review found these problems, fix them: " + strings.Join(issues, "; "))
	regenerated, err := o.storyteller.Consult(ctx, regenReq)
	if err != nil {
		// The first draft is still usable; surface it with its issues noted.
		slog.Warn("Orchestrator regeneration failed, surfacing first draft", "error", err, "conversationID", conversationID)
		story.ConfidenceNotes = appendNotes(story.ConfidenceNotes, issues)
		return story, nil
	}

	if remaining := reviewDraft(regenerated, record.Wellness, record.Brief); len(remaining) > 0 {
		slog.Info("Orchestrator draft still flagged after regeneration", "conversationID", conversationID, "issues", len(remaining))
		regenerated.ConfidenceNotes = appendNotes(regenerated.ConfidenceNotes, remaining)
	}
	return regenerated, nil
}

// handleFeedback classifies user feedback on the surfaced draft and routes
// the conversation: approval finalizes, issues loop back to the responsible
// stage. "both" always reruns wellness before storytelling so corrected facts
// feed the rewrite.
func (o *Orchestrator) handleFeedback(ctx context.Context, conversationID string, record *ConversationRecord, userMessage string) (string, models.StateType, error) {
	if record.Story == nil {
		return o.runGeneration(ctx, conversationID, record, false)
	}

	analysis, err := o.feedback.Consult(ctx, models.FeedbackRequest{
		Feedback:      userMessage,
		Story:         *record.Story,
		Brief:         record.Brief.Clone(),
		WellnessFacts: wellnessFacts(record),
	})
	if err != nil {
		slog.Error("Orchestrator feedback stage failed", "error", err, "conversationID", conversationID)
		return "I couldn't process that feedback just now. Please send it again.", models.StateAwaitingFeedback, nil
	}

	if analysis.FeedbackType == models.FeedbackApproved {
		o.applySignals(ctx, record, models.SignalAccepted)
		record.archiveIteration(userMessage)
		if err := saveRecord(ctx, o.stateManager, conversationID, record); err != nil {
			return "", "", err
		}
		if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateFinalized); err != nil {
			return "", "", err
		}
		slog.Info("Orchestrator conversation finalized", "conversationID", conversationID, "iterations", record.Iteration)
		return "Great, the content is finalized. Start a new conversation whenever you need the next piece.", models.StateFinalized, nil
	}

	// Revision path. At the iteration cap, finalize with the current draft
	// rather than looping again.
	if record.Iteration >= o.maxIterations {
		record.archiveIteration(userMessage)
		if err := saveRecord(ctx, o.stateManager, conversationID, record); err != nil {
			return "", "", err
		}
		if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, models.StateFinalized); err != nil {
			return "", "", err
		}
		slog.Info("Orchestrator iteration cap reached, finalizing", "conversationID", conversationID, "iterations", record.Iteration)
		return fmt.Sprintf("We've been through %d revisions, so I'm finalizing the latest draft. Your last feedback is recorded with it for the next conversation.", record.Iteration), models.StateFinalized, nil
	}

	if analysis.FeedbackType == models.FeedbackWellness || analysis.FeedbackType == models.FeedbackBoth {
		// Factual complaints implicate the chunks behind the draft.
		o.applySignals(ctx, record, models.SignalRejected)
	}

	record.archiveIteration(userMessage)
	record.Iteration++
	record.PreviousFeedback = revisionFeedback(userMessage, analysis)

	routing := routingState(analysis.FeedbackType)
	if err := o.stateManager.SetCurrentState(ctx, conversationID, models.FlowTypeContent, routing); err != nil {
		return "", "", err
	}
	slog.Info("Orchestrator routing revision", "conversationID", conversationID, "type", analysis.FeedbackType, "iteration", record.Iteration)

	return o.runGeneration(ctx, conversationID, record, analysis.FeedbackType == models.FeedbackStorytelling)
}

// applySignals reports a feedback outcome for every chunk behind the current
// wellness response. Signal failures are logged, never surfaced: reinforcement
// is best-effort and must not break the conversation.
func (o *Orchestrator) applySignals(ctx context.Context, record *ConversationRecord, outcome models.SignalOutcome) {
	if o.signals == nil || record.Wellness == nil {
		return
	}
	for _, chunkID := range record.Wellness.SourceChunkIDs {
		if _, err := o.signals.Update(ctx, chunkID, outcome); err != nil {
			slog.Warn("Orchestrator signal update failed", "error", err, "chunkID", chunkID, "outcome", outcome)
		}
	}
}

func routingState(ft models.FeedbackType) models.StateType {
	switch ft {
	case models.FeedbackWellness:
		return models.StateRoutingWellness
	case models.FeedbackStorytelling:
		return models.StateRoutingStory
	default:
		return models.StateRoutingBoth
	}
}

func wellnessFacts(record *ConversationRecord) []string {
	if record.Wellness == nil {
		return nil
	}
	return record.Wellness.VerifiedFacts
}

// revisionFeedback folds the raw feedback and the analyzer's extracted issues
// into the previous_feedback the next iteration receives.
func revisionFeedback(userMessage string, analysis *models.FeedbackAnalysis) string {
	var b strings.Builder
	b.WriteString(userMessage)
	if len(analysis.WellnessIssues) > 0 {
		b.WriteString("\nFactual issues: " + strings.Join(analysis.WellnessIssues, "; "))
	}
	if len(analysis.StorytellingIssues) > 0 {
		b.WriteString("\nStorytelling issues: " + strings.Join(analysis.StorytellingIssues, "; "))
	}
	if len(analysis.SpecificRequests) > 0 {
		b.WriteString("\nRequests: " + strings.Join(analysis.SpecificRequests, "; "))
	}
	return b.String()
}

// buildWellnessQuery derives the retrieval query from the brief.
func buildWellnessQuery(b models.ContentBrief) string {
	parts := []string{b.ValueProposition, "for", b.TargetAudience, "addressing", b.PainArea}
	if len(b.SpecificPrograms) > 0 {
		parts = append(parts, "programs:", strings.Join(b.SpecificPrograms, ", "))
	}
	return strings.Join(parts, " ")
}

// formatDraft renders the surfaced draft for the user, including warnings
// from verification and notes from review.
func formatDraft(record *ConversationRecord) string {
	story := record.Story
	var b strings.Builder

	b.WriteString(story.Hook + "\n\n")
	b.WriteString(story.Content + "\n\n")
	b.WriteString(story.CallToAction)
	if len(story.Hashtags) > 0 {
		b.WriteString("\n\n" + strings.Join(story.Hashtags, " "))
	}
	if record.Wellness != nil && len(record.Wellness.Warnings) > 0 {
		b.WriteString("\n\nNote: " + strings.Join(record.Wellness.Warnings, " "))
	}
	if story.ConfidenceNotes != "" {
		b.WriteString("\n\nReview notes: " + story.ConfidenceNotes)
	}
	b.WriteString("\n\nHow does this look? Tell me what to change, or say it's approved.")
	return b.String()
}

func appendNotes(existing string, issues []string) string {
	note := strings.Join(issues, "; ")
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
