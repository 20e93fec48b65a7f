package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/retrieval"
)

// mockGenAI returns queued replies in order; when the queue runs dry it
// repeats the last reply.
type mockGenAI struct {
	replies []string
	calls   int
	err     error
	// lastUserPrompt captures the final user message of the last call.
	lastUserPrompt string
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.calls++
	for i := len(messages) - 1; i >= 0; i-- {
		if u := messages[i].OfUser; u != nil {
			m.lastUserPrompt = u.Content.OfString.Value
			break
		}
	}
	if m.err != nil {
		return "", m.err
	}
	idx := m.calls - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

// stubRetriever returns fixed results or a fixed error.
type stubRetriever struct {
	results    []retrieval.Result
	err        error
	lastFilter string
}

func (s *stubRetriever) Search(ctx context.Context, query string, threshold float64, topK int, sourceFilter string) ([]retrieval.Result, error) {
	s.lastFilter = sourceFilter
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func wellnessResult(id, text string) retrieval.Result {
	return retrieval.Result{
		Chunk: models.KnowledgeChunk{
			ID: id, Text: text, Source: "wellness/programs",
			SignalScore: 1.0, CreatedAt: time.Now(),
		},
		Similarity: 0.9,
		FinalScore: 0.9,
	}
}

func testBrief() models.ContentBrief {
	return models.ContentBrief{
		TargetAudience:   "burned-out executives",
		PainArea:         "chronic sleep problems",
		ComplianceLevel:  models.ComplianceHigh,
		FunnelStage:      models.FunnelAwareness,
		ValueProposition: "science-backed recovery",
		DesiredAction:    "book a call",
		Tone:             "calm and direct",
		Constraints:      "no medical claims",
		Platform:         models.PlatformLinkedIn,
		PricePoints:      "premium",
	}
}

const wellnessJSON = `{"verified_facts": ["The Sleep Reset program runs 7 days."], "wellness_guidance": "Lead with recovery outcomes.", "confidence_level": "high"}`

func TestWellnessAdvisorConsult(t *testing.T) {
	client := &mockGenAI{replies: []string{wellnessJSON}}
	ret := &stubRetriever{results: []retrieval.Result{wellnessResult("k_1", "The Sleep Reset program runs 7 days.")}}
	advisor := NewWellnessAdvisor(client, ret)

	resp, err := advisor.Consult(context.Background(), models.WellnessRequest{
		Query: "sleep programs", Brief: testBrief(),
	})
	if err != nil {
		t.Fatalf("Consult failed: %v", err)
	}
	if len(resp.VerifiedFacts) != 1 || resp.ConfidenceLevel != models.ConfidenceHigh {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.SourceChunkIDs) != 1 || resp.SourceChunkIDs[0] != "k_1" {
		t.Errorf("expected source chunk provenance, got %v", resp.SourceChunkIDs)
	}
	if ret.lastFilter != "wellness" {
		t.Errorf("advisor must restrict retrieval to wellness sources, got %q", ret.lastFilter)
	}
	if !strings.Contains(client.lastUserPrompt, "Sleep Reset") {
		t.Error("retrieved passage text missing from the prompt")
	}
}

func TestWellnessAdvisorDegradedMode(t *testing.T) {
	client := &mockGenAI{replies: []string{`{"wellness_guidance": "General guidance only.", "confidence_level": "high", "verified_facts": ["unverifiable"]}`}}
	ret := &stubRetriever{err: fmt.Errorf("%w: backend down", models.ErrRetrievalUnavailable)}
	advisor := NewWellnessAdvisor(client, ret)

	resp, err := advisor.Consult(context.Background(), models.WellnessRequest{Query: "q", Brief: testBrief()})
	if err != nil {
		t.Fatalf("degraded mode must not fail the consult: %v", err)
	}
	if resp.ConfidenceLevel != models.ConfidenceLow {
		t.Errorf("degraded mode must force confidence low, got %s", resp.ConfidenceLevel)
	}
	if len(resp.Warnings) == 0 {
		t.Error("degraded mode must carry an explicit warning")
	}
	if len(resp.VerifiedFacts) != 0 {
		t.Error("degraded mode must not pass model claims off as verified facts")
	}
}

func TestWellnessAdvisorGenerationFailure(t *testing.T) {
	client := &mockGenAI{err: errors.New("model down")}
	advisor := NewWellnessAdvisor(client, &stubRetriever{})

	_, err := advisor.Consult(context.Background(), models.WellnessRequest{Query: "q", Brief: testBrief()})
	var agentErr *AgentError
	if !errors.As(err, &agentErr) || agentErr.Agent != AgentWellness {
		t.Errorf("expected wellness AgentError, got %v", err)
	}
}

const storyJSON = `{"hook": "Still waking up at 3am?", "hook_type": "question", "content": "Chronic sleep problems drain every decision you make. Our retreat rebuilds your nights.", "call_to_action": "Book a discovery call.", "framework": "", "word_count": 999}`

func TestStorytellerConsult(t *testing.T) {
	client := &mockGenAI{replies: []string{storyJSON}}
	st := NewStoryteller(client)

	resp, err := st.Consult(context.Background(), models.StorytellingRequest{
		Brief: testBrief(), IterationNumber: 1,
	})
	if err != nil {
		t.Fatalf("Consult failed: %v", err)
	}
	if resp.Framework != "AIDA" {
		t.Errorf("awareness stage must default to AIDA, got %q", resp.Framework)
	}
	want := len(strings.Fields(resp.Content))
	if resp.WordCount != want {
		t.Errorf("word count must be computed locally: expected %d, got %d", want, resp.WordCount)
	}
	if !strings.Contains(client.lastUserPrompt, "chronic sleep problems") {
		t.Error("pain area missing from the prompt")
	}
}

func TestStorytellerCarriesRevisionFeedback(t *testing.T) {
	client := &mockGenAI{replies: []string{storyJSON}}
	st := NewStoryteller(client)

	_, err := st.Consult(context.Background(), models.StorytellingRequest{
		Brief:            testBrief(),
		IterationNumber:  2,
		PreviousFeedback: "make the hook less alarmist",
	})
	if err != nil {
		t.Fatalf("Consult failed: %v", err)
	}
	if !strings.Contains(client.lastUserPrompt, "less alarmist") {
		t.Error("previous feedback missing from the revision prompt")
	}
}

func TestFrameworkForStage(t *testing.T) {
	cases := map[models.FunnelStage]string{
		models.FunnelAwareness:     "AIDA",
		models.FunnelConsideration: "PAS",
		models.FunnelConversion:    "4Ps",
		models.FunnelLoyalty:       "BAB",
	}
	for stage, want := range cases {
		if got := frameworkForStage(stage); got != want {
			t.Errorf("stage %s: expected %s, got %s", stage, want, got)
		}
	}
}

func TestFeedbackAnalyzerClassification(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  models.FeedbackType
	}{
		{"both", `{"wellness_issues": ["wrong price"], "storytelling_issues": ["weak hook"]}`, models.FeedbackBoth},
		{"wellness only", `{"wellness_issues": ["wrong price"]}`, models.FeedbackWellness},
		{"storytelling only", `{"storytelling_issues": ["weak hook"]}`, models.FeedbackStorytelling},
		{"requests route to storyteller", `{"specific_requests": ["shorter"]}`, models.FeedbackStorytelling},
		{"approved", `{}`, models.FeedbackApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := NewFeedbackAnalyzer(&mockGenAI{replies: []string{tc.reply}})
			resp, err := analyzer.Consult(context.Background(), models.FeedbackRequest{
				Feedback: "some feedback", Brief: testBrief(),
			})
			if err != nil {
				t.Fatalf("Consult failed: %v", err)
			}
			if resp.FeedbackType != tc.want {
				t.Errorf("expected %s, got %s", tc.want, resp.FeedbackType)
			}
		})
	}
}

func TestGenerateJSONRetriesMalformedReply(t *testing.T) {
	client := &mockGenAI{replies: []string{"sorry, here you go:", `{"hook": "h"}`}}
	var out models.StorytellingResponse
	msgs := []openai.ChatCompletionMessageParamUnion{openai.UserMessage("go")}

	if err := generateJSON(context.Background(), client, AgentStoryteller, msgs, &out); err != nil {
		t.Fatalf("expected correction retry to recover: %v", err)
	}
	if client.calls != 2 || out.Hook != "h" {
		t.Errorf("expected recovery on second call, got %d calls, hook %q", client.calls, out.Hook)
	}
}

func TestGenerateJSONSurfacesAgentError(t *testing.T) {
	client := &mockGenAI{replies: []string{"not json", "still not json"}}
	var out models.StorytellingResponse
	msgs := []openai.ChatCompletionMessageParamUnion{openai.UserMessage("go")}

	err := generateJSON(context.Background(), client, AgentFeedback, msgs, &out)
	var agentErr *AgentError
	if !errors.As(err, &agentErr) || agentErr.Agent != AgentFeedback {
		t.Errorf("expected feedback AgentError, got %v", err)
	}
}
