package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/models"
)

// Wellness retrieval parameters. The advisor only searches wellness-domain
// sources so storytelling material never leaks into fact verification.
const (
	wellnessSourceFilter = "wellness"
	wellnessTopK         = 6
	wellnessThreshold    = 0.3
)

// WellnessAdvisor verifies wellness claims against the knowledge corpus.
// Facts it cannot back with a retrieved chunk are reported as warnings, never
// as verified facts. When retrieval itself is unavailable the advisor
// degrades: it answers with confidence low and an explicit warning instead of
// failing the conversation.
type WellnessAdvisor struct {
	client    genai.ClientInterface
	retriever Retriever
}

// NewWellnessAdvisor creates a wellness advisor agent.
func NewWellnessAdvisor(client genai.ClientInterface, retriever Retriever) *WellnessAdvisor {
	return &WellnessAdvisor{client: client, retriever: retriever}
}

// Consult answers a wellness request with corpus-verified facts.
func (a *WellnessAdvisor) Consult(ctx context.Context, req models.WellnessRequest) (*models.WellnessResponse, error) {
	if req.Query == "" {
		return nil, &AgentError{Agent: AgentWellness, Err: fmt.Errorf("query cannot be empty")}
	}

	query := req.Query
	if len(req.SpecificTopics) > 0 {
		query += " " + strings.Join(req.SpecificTopics, " ")
	}

	results, err := a.retriever.Search(ctx, query, wellnessThreshold, wellnessTopK, wellnessSourceFilter)
	degraded := false
	if err != nil {
		if !errors.Is(err, models.ErrRetrievalUnavailable) {
			return nil, &AgentError{Agent: AgentWellness, Err: err}
		}
		// Degraded mode: answer without corpus support rather than blocking.
		slog.Warn("WellnessAdvisor retrieval unavailable, degrading", "error", err)
		degraded = true
		results = nil
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(wellnessSystemPrompt),
		openai.UserMessage(buildWellnessUserPrompt(req, results)),
	}

	var resp models.WellnessResponse
	if err := generateJSON(ctx, a.client, AgentWellness, messages, &resp); err != nil {
		return nil, err
	}

	for _, r := range results {
		resp.SourceChunkIDs = append(resp.SourceChunkIDs, r.Chunk.ID)
	}
	if degraded {
		resp.ConfidenceLevel = models.ConfidenceLow
		resp.Warnings = append(resp.Warnings, "knowledge retrieval was unavailable; facts could not be verified against the corpus")
		resp.VerifiedFacts = nil
	} else if len(results) == 0 {
		resp.ConfidenceLevel = models.ConfidenceLow
		if len(resp.Warnings) == 0 {
			resp.Warnings = append(resp.Warnings, "no knowledge passages matched the query")
		}
	}
	if resp.ConfidenceLevel == "" {
		resp.ConfidenceLevel = models.ConfidenceMedium
	}

	slog.Debug("WellnessAdvisor Consult completed",
		"facts", len(resp.VerifiedFacts), "warnings", len(resp.Warnings),
		"confidence", resp.ConfidenceLevel, "sourceChunks", len(resp.SourceChunkIDs))
	return &resp, nil
}
