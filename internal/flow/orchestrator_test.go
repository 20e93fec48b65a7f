package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/store"
)

// mockGenAI returns a fixed reply for brief extraction.
type mockGenAI struct {
	reply string
	err   error
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockWellness struct {
	calls int
	resp  *models.WellnessResponse
	err   error
}

func (m *mockWellness) Consult(ctx context.Context, req models.WellnessRequest) (*models.WellnessResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	resp := *m.resp
	return &resp, nil
}

type mockStory struct {
	calls    int
	resp     *models.StorytellingResponse
	err      error
	requests []models.StorytellingRequest
}

func (m *mockStory) Consult(ctx context.Context, req models.StorytellingRequest) (*models.StorytellingResponse, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	resp := *m.resp
	return &resp, nil
}

type mockFeedback struct {
	resp *models.FeedbackAnalysis
	err  error
}

func (m *mockFeedback) Consult(ctx context.Context, req models.FeedbackRequest) (*models.FeedbackAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	resp := *m.resp
	return &resp, nil
}

type mockSignals struct {
	outcomes map[string][]models.SignalOutcome
}

func (m *mockSignals) Update(ctx context.Context, chunkID string, outcome models.SignalOutcome) (float64, error) {
	if m.outcomes == nil {
		m.outcomes = make(map[string][]models.SignalOutcome)
	}
	m.outcomes[chunkID] = append(m.outcomes[chunkID], outcome)
	return 1.0, nil
}

const completeBriefJSON = `{
	"target_audience": "burned-out executives",
	"pain_area": "chronic sleep problems",
	"compliance_level": "high",
	"funnel_stage": "awareness",
	"value_proposition": "science-backed recovery",
	"desired_action": "book a call",
	"tone": "calm and direct",
	"constraints": "no medical claims",
	"platform": "linkedin",
	"price_points": "premium",
	"specific_programs": ["Sleep Reset"],
	"specific_centers": ["Lakeside"],
	"key_messages": ["recovery is measurable"]
}`

func cleanWellnessResponse() *models.WellnessResponse {
	return &models.WellnessResponse{
		VerifiedFacts:    []string{"The Sleep Reset program runs 7 days."},
		WellnessGuidance: "Lead with recovery outcomes.",
		ConfidenceLevel:  models.ConfidenceHigh,
		SourceChunkIDs:   []string{"k_1", "k_2"},
	}
}

// cleanStoryResponse passes every review check for the complete brief above.
func cleanStoryResponse() *models.StorytellingResponse {
	return &models.StorytellingResponse{
		Hook:         "Still awake at 3am?",
		HookType:     "question",
		Content:      "Chronic sleep problems quietly tax every decision you make. The Sleep Reset program rebuilds your nights with measurable recovery.",
		CallToAction: "Book a discovery call.",
		Framework:    "AIDA",
		WordCount:    20,
	}
}

type fixture struct {
	orch     *Orchestrator
	wellness *mockWellness
	story    *mockStory
	feedback *mockFeedback
	signals  *mockSignals
}

func newFixture(extraction string) *fixture {
	f := &fixture{
		wellness: &mockWellness{resp: cleanWellnessResponse()},
		story:    &mockStory{resp: cleanStoryResponse()},
		feedback: &mockFeedback{resp: &models.FeedbackAnalysis{FeedbackType: models.FeedbackApproved}},
		signals:  &mockSignals{},
	}
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())
	f.orch = NewOrchestrator(sm, &mockGenAI{reply: extraction}, f.wellness, f.story, f.feedback, f.signals)
	return f
}

// driveToFeedback runs one turn that completes the brief and produces a draft.
func driveToFeedback(t *testing.T, f *fixture, conversationID string) {
	t.Helper()
	reply, state, err := f.orch.HandleTurn(context.Background(), conversationID, "here is everything you need")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateAwaitingFeedback {
		t.Fatalf("expected AWAITING_FEEDBACK, got %s (reply: %s)", state, reply)
	}
}

func TestHandleTurnIncompleteBriefAsksQuestion(t *testing.T) {
	f := newFixture(`{"target_audience": "executives"}`)

	reply, state, err := f.orch.HandleTurn(context.Background(), "c_1", "I want a post for executives")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateBriefing {
		t.Errorf("expected BRIEFING, got %s", state)
	}
	if reply == "" {
		t.Error("expected a follow-up question")
	}
	if f.wellness.calls != 0 || f.story.calls != 0 {
		t.Error("sub-agents must be unreachable while the brief is incomplete")
	}
}

func TestHandleTurnCompleteBriefProducesDraft(t *testing.T) {
	f := newFixture(completeBriefJSON)

	reply, state, err := f.orch.HandleTurn(context.Background(), "c_2", "full brief in one message")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateAwaitingFeedback {
		t.Fatalf("expected AWAITING_FEEDBACK, got %s", state)
	}
	if f.wellness.calls != 1 || f.story.calls != 1 {
		t.Errorf("expected one wellness and one story consult, got %d/%d", f.wellness.calls, f.story.calls)
	}
	if !strings.Contains(reply, "Still awake at 3am?") || !strings.Contains(reply, "Book a discovery call.") {
		t.Errorf("draft reply missing hook or CTA: %s", reply)
	}
}

func TestHandleTurnApprovalFinalizesAndReinforces(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_3")

	_, state, err := f.orch.HandleTurn(context.Background(), "c_3", "perfect, approved")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateFinalized {
		t.Errorf("expected FINALIZED, got %s", state)
	}
	for _, id := range []string{"k_1", "k_2"} {
		got := f.signals.outcomes[id]
		if len(got) != 1 || got[0] != models.SignalAccepted {
			t.Errorf("chunk %s: expected one accepted signal, got %v", id, got)
		}
	}

	// Turns after finalization do not restart the machine.
	_, state, err = f.orch.HandleTurn(context.Background(), "c_3", "one more thing")
	if err != nil || state != models.StateFinalized {
		t.Errorf("finalized conversation must stay terminal, got %s, %v", state, err)
	}
}

func TestHandleTurnWellnessFeedbackRejectsAndReruns(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_4")
	f.feedback.resp = &models.FeedbackAnalysis{
		FeedbackType:   models.FeedbackWellness,
		WellnessIssues: []string{"the program length is wrong"},
	}

	_, state, err := f.orch.HandleTurn(context.Background(), "c_4", "the program is 10 days, not 7")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateAwaitingFeedback {
		t.Errorf("revision should end back at AWAITING_FEEDBACK, got %s", state)
	}
	if f.wellness.calls != 2 {
		t.Errorf("wellness feedback must rerun the wellness stage, got %d calls", f.wellness.calls)
	}
	if got := f.signals.outcomes["k_1"]; len(got) != 1 || got[0] != models.SignalRejected {
		t.Errorf("factual complaints must reject source chunks, got %v", got)
	}
	// The revision request must carry the feedback and bumped iteration.
	last := f.story.requests[len(f.story.requests)-1]
	if last.IterationNumber != 2 || !strings.Contains(last.PreviousFeedback, "10 days") {
		t.Errorf("revision request not populated: iteration=%d feedback=%q", last.IterationNumber, last.PreviousFeedback)
	}
}

func TestHandleTurnStorytellingFeedbackSkipsWellness(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_5")
	f.feedback.resp = &models.FeedbackAnalysis{
		FeedbackType:       models.FeedbackStorytelling,
		StorytellingIssues: []string{"hook is weak"},
	}

	_, _, err := f.orch.HandleTurn(context.Background(), "c_5", "the hook is weak")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if f.wellness.calls != 1 {
		t.Errorf("storytelling-only feedback must not rerun wellness, got %d calls", f.wellness.calls)
	}
	if f.story.calls != 2 {
		t.Errorf("expected a second story consult, got %d", f.story.calls)
	}
	if got := f.signals.outcomes["k_1"]; len(got) != 0 {
		t.Errorf("storytelling feedback must not touch signals, got %v", got)
	}
}

func TestHandleTurnBothFeedbackSequencesWellnessFirst(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_6")
	f.feedback.resp = &models.FeedbackAnalysis{
		FeedbackType:       models.FeedbackBoth,
		WellnessIssues:     []string{"wrong price"},
		StorytellingIssues: []string{"too long"},
	}

	wellnessBefore := f.wellness.calls
	storyBefore := f.story.calls
	_, _, err := f.orch.HandleTurn(context.Background(), "c_6", "price is wrong and it's too long")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if f.wellness.calls != wellnessBefore+1 || f.story.calls != storyBefore+1 {
		t.Errorf("both-routing must rerun wellness then story, got +%d/+%d", f.wellness.calls-wellnessBefore, f.story.calls-storyBefore)
	}
	if got := f.signals.outcomes["k_2"]; len(got) != 1 || got[0] != models.SignalRejected {
		t.Errorf("both-routing must reject source chunks, got %v", got)
	}
}

func TestHandleTurnAgentFailureKeepsState(t *testing.T) {
	f := newFixture(completeBriefJSON)
	f.wellness.err = errors.New("model down")

	reply, state, err := f.orch.HandleTurn(context.Background(), "c_7", "full brief")
	if err != nil {
		t.Fatalf("agent failure must not fail the turn: %v", err)
	}
	if state != models.StateConsultingWellness {
		t.Errorf("machine must stay in the calling state, got %s", state)
	}
	if !strings.Contains(reply, "retry") {
		t.Errorf("user must be told the stage failed: %s", reply)
	}

	// Next turn retries the failed stage.
	f.wellness.err = nil
	_, state, err = f.orch.HandleTurn(context.Background(), "c_7", "try again")
	if err != nil {
		t.Fatalf("retry turn failed: %v", err)
	}
	if state != models.StateAwaitingFeedback {
		t.Errorf("retry should complete the pipeline, got %s", state)
	}
}

func TestHandleTurnIterationCapFinalizes(t *testing.T) {
	f := newFixture(completeBriefJSON)
	f.orch.maxIterations = 2
	driveToFeedback(t, f, "c_8")
	f.feedback.resp = &models.FeedbackAnalysis{
		FeedbackType:       models.FeedbackStorytelling,
		StorytellingIssues: []string{"weak"},
	}

	// First revision: allowed.
	_, state, err := f.orch.HandleTurn(context.Background(), "c_8", "make it punchier")
	if err != nil || state != models.StateAwaitingFeedback {
		t.Fatalf("first revision should loop, got %s, %v", state, err)
	}

	// Second round of non-approval feedback hits the cap.
	reply, state, err := f.orch.HandleTurn(context.Background(), "c_8", "still not right")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateFinalized {
		t.Errorf("iteration cap must finalize, got %s", state)
	}
	if !strings.Contains(reply, "finalizing") {
		t.Errorf("cap reply must explain finalization: %s", reply)
	}
}

func TestHandleTurnReviewTriggersOneRegeneration(t *testing.T) {
	f := newFixture(completeBriefJSON)
	// Draft with no CTA fails review; the regeneration returns the same
	// draft, so the issue is surfaced via confidence notes instead.
	f.story.resp = cleanStoryResponse()
	f.story.resp.CallToAction = ""

	reply, state, err := f.orch.HandleTurn(context.Background(), "c_9", "full brief")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if state != models.StateAwaitingFeedback {
		t.Fatalf("expected AWAITING_FEEDBACK, got %s", state)
	}
	if f.story.calls != 2 {
		t.Errorf("expected exactly one silent regeneration, got %d story calls", f.story.calls)
	}
	if !strings.Contains(f.story.requests[1].PreviousFeedback, "call to action") {
		t.Errorf("regeneration request must carry the review issues: %q", f.story.requests[1].PreviousFeedback)
	}
	if !strings.Contains(reply, "Review notes:") {
		t.Errorf("surviving issues must surface as review notes: %s", reply)
	}
}

func TestHandleTurnEmptyConversationID(t *testing.T) {
	f := newFixture(completeBriefJSON)
	if _, _, err := f.orch.HandleTurn(context.Background(), "", "hello"); err == nil {
		t.Error("expected error for empty conversation ID")
	}
}
