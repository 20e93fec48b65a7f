// Package agents implements the three content sub-agents: the wellness
// advisor, the storyteller, and the feedback analyzer. Each agent is
// stateless; all context arrives in the request and the orchestrator owns
// conversation state.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/retrieval"
)

// Agent names used in error reporting and routing.
const (
	AgentWellness    = "wellness"
	AgentStoryteller = "storyteller"
	AgentFeedback    = "feedback"
)

// AgentError reports a sub-agent failure to the orchestrator, which keeps the
// conversation alive and surfaces the failure to the user instead of
// crashing.
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// Retriever is the corpus search surface agents depend on. Satisfied by
// *retrieval.Engine; tests substitute a stub.
type Retriever interface {
	Search(ctx context.Context, query string, threshold float64, topK int, sourceFilter string) ([]retrieval.Result, error)
}

// generateJSON runs a completion and unmarshals the reply into out, retrying
// once with an explicit correction when the first reply is not valid JSON.
func generateJSON(ctx context.Context, client genai.ClientInterface, agent string, messages []openai.ChatCompletionMessageParamUnion, out interface{}) error {
	reply, err := client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return &AgentError{Agent: agent, Err: err}
	}

	payload := genai.ExtractJSON(reply)
	if err := json.Unmarshal([]byte(payload), out); err == nil {
		return nil
	}
	slog.Warn("Agent reply was not valid JSON, requesting correction", "agent", agent)

	correction := append(messages,
		openai.AssistantMessage(reply),
		openai.UserMessage("That response was not valid JSON. Reply again with only the JSON object, no prose and no code fences."))
	reply, err = client.GenerateWithMessages(ctx, correction)
	if err != nil {
		return &AgentError{Agent: agent, Err: err}
	}
	if err := json.Unmarshal([]byte(genai.ExtractJSON(reply)), out); err != nil {
		slog.Error("Agent reply unparseable after correction", "agent", agent, "error", err)
		return &AgentError{Agent: agent, Err: fmt.Errorf("unparseable response: %w", err)}
	}
	return nil
}
