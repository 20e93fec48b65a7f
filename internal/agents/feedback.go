package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/models"
)

// FeedbackAnalyzer categorizes raw user feedback on a draft so the
// orchestrator can route revisions. The model only extracts issue lists; the
// routing classification itself is derived deterministically from those
// lists, so "approved" can never be produced alongside detected issues.
type FeedbackAnalyzer struct {
	client genai.ClientInterface
}

// NewFeedbackAnalyzer creates a feedback analyzer agent.
func NewFeedbackAnalyzer(client genai.ClientInterface) *FeedbackAnalyzer {
	return &FeedbackAnalyzer{client: client}
}

// Consult analyzes feedback against the draft it critiques.
func (a *FeedbackAnalyzer) Consult(ctx context.Context, req models.FeedbackRequest) (*models.FeedbackAnalysis, error) {
	if req.Feedback == "" {
		return nil, &AgentError{Agent: AgentFeedback, Err: fmt.Errorf("feedback cannot be empty")}
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(feedbackSystemPrompt),
		openai.UserMessage(buildFeedbackUserPrompt(req)),
	}

	var resp models.FeedbackAnalysis
	if err := generateJSON(ctx, a.client, AgentFeedback, messages, &resp); err != nil {
		return nil, err
	}

	resp.FeedbackType = classify(resp)
	slog.Debug("FeedbackAnalyzer Consult completed",
		"type", resp.FeedbackType,
		"wellnessIssues", len(resp.WellnessIssues),
		"storytellingIssues", len(resp.StorytellingIssues),
		"requests", len(resp.SpecificRequests))
	return &resp, nil
}

// classify derives the routing type from the extracted issue lists. Approved
// requires no issues and no specific requests; requests without factual
// issues route to the storyteller.
func classify(a models.FeedbackAnalysis) models.FeedbackType {
	hasWellness := len(a.WellnessIssues) > 0
	hasStory := len(a.StorytellingIssues) > 0 || len(a.SpecificRequests) > 0
	switch {
	case hasWellness && hasStory:
		return models.FeedbackBoth
	case hasWellness:
		return models.FeedbackWellness
	case hasStory:
		return models.FeedbackStorytelling
	default:
		return models.FeedbackApproved
	}
}
