package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/models"
)

// Storyteller turns a frozen brief and verified wellness context into
// platform-native marketing content. It consumes the whole brief and the
// whole wellness response; nothing is summarized away before the model sees
// it.
type Storyteller struct {
	client genai.ClientInterface
}

// NewStoryteller creates a storyteller agent.
func NewStoryteller(client genai.ClientInterface) *Storyteller {
	return &Storyteller{client: client}
}

// Consult produces a content draft for the given request.
func (s *Storyteller) Consult(ctx context.Context, req models.StorytellingRequest) (*models.StorytellingResponse, error) {
	if req.Brief.PainArea == "" {
		return nil, &AgentError{Agent: AgentStoryteller, Err: fmt.Errorf("brief pain area cannot be empty")}
	}

	framework := frameworkForStage(req.Brief.FunnelStage)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(storytellerSystemPrompt),
		openai.UserMessage(buildStorytellerUserPrompt(req, framework)),
	}

	var resp models.StorytellingResponse
	if err := generateJSON(ctx, s.client, AgentStoryteller, messages, &resp); err != nil {
		return nil, err
	}

	if resp.Framework == "" {
		resp.Framework = framework
	}
	// Word count is computed here, not trusted from the model.
	resp.WordCount = len(strings.Fields(resp.Content))

	slog.Debug("Storyteller Consult completed",
		"framework", resp.Framework, "wordCount", resp.WordCount,
		"iteration", req.IterationNumber, "platform", req.Brief.Platform)
	return &resp, nil
}

// frameworkForStage maps the funnel stage to a narrative framework: cold
// audiences get attention-first structures, warm audiences get
// problem-agitation, buyers get offer framing, and existing customers get
// before/after stories.
func frameworkForStage(stage models.FunnelStage) string {
	switch stage {
	case models.FunnelAwareness:
		return "AIDA"
	case models.FunnelConsideration:
		return "PAS"
	case models.FunnelConversion:
		return "4Ps"
	case models.FunnelLoyalty:
		return "BAB"
	default:
		return "AIDA"
	}
}
