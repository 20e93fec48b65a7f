package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/canokcuer/wellspring/internal/brief"
	"github.com/canokcuer/wellspring/internal/genai"
)

const briefExtractionSystemPrompt = `You extract content brief fields from a user's message in a marketing conversation for a wellness retreat brand.
Return only a JSON object containing the fields the message actually answers; omit everything else. Never guess and never include empty values.
Recognized fields:
- target_audience, pain_area, value_proposition, desired_action, tone, constraints, price_points: free text
- compliance_level: "high" or "low"
- funnel_stage: "awareness", "consideration", "conversion" or "loyalty"
- platform: "instagram", "facebook", "linkedin", "tiktok", "email" or "blog"
- specific_programs, specific_centers, key_messages: arrays of strings
- has_campaign: boolean
- campaign_price, campaign_duration, campaign_center, campaign_deadline: free text`

// briefQuestions maps each missing field to the follow-up the assistant asks.
// Fields are asked in the validator's report order, one at a time.
var briefQuestions = map[string]string{
	"target_audience":   "Who is this content for? Describe the audience you want to reach.",
	"pain_area":         "What problem or pain point should this content speak to?",
	"compliance_level":  "How strict should we be with claims: high compliance (verified facts only) or low?",
	"funnel_stage":      "Where is this audience in the journey: awareness, consideration, conversion, or loyalty?",
	"value_proposition": "What is the core value proposition you want to communicate?",
	"desired_action":    "What should the reader do after seeing this content?",
	"tone":              "What tone should the content carry?",
	"constraints":       "Any constraints I should respect, such as topics to avoid or claims not to make?",
	"platform":          "Which platform is this for: instagram, facebook, linkedin, tiktok, email, or blog?",
	"price_points":      "What price level or price points should the content reflect?",
	"specific_programs": "Which specific programs should the content feature?",
	"specific_centers":  "Which centers or locations should be mentioned?",
	"key_messages":      "What key messages must come through?",
	"has_campaign":      "Is there an active campaign or promotion to build this around? (yes/no)",
	"campaign_price":    "What is the campaign price?",
	"campaign_duration": "How long does the campaign run?",
	"campaign_center":   "Which center is the campaign for?",
	"campaign_deadline": "What is the campaign deadline?",
}

// extractBriefFields asks the model which brief fields the user's message
// answers and merges them into the record's brief. Extraction failures are
// not fatal; the turn falls back to re-asking.
func extractBriefFields(ctx context.Context, client genai.ClientInterface, record *ConversationRecord, userMessage string) error {
	briefJSON, _ := record.Brief.ToJSON()
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(briefExtractionSystemPrompt),
		openai.UserMessage(fmt.Sprintf("Brief so far:\n%s\n\nUser message:\n%s", briefJSON, userMessage)),
	}

	reply, err := client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return fmt.Errorf("brief extraction failed: %w", err)
	}

	payload := genai.ExtractJSON(reply)
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return fmt.Errorf("brief extraction returned invalid JSON: %w", err)
	}
	pruneEmptyFields(fields)
	if len(fields) == 0 {
		slog.Debug("Brief extraction found no answered fields", "conversationID", record.Brief.ConversationID)
		return nil
	}

	// Identity fields are owned by the orchestrator, never by extraction.
	delete(fields, "conversation_id")
	delete(fields, "created_at")
	delete(fields, "updated_at")

	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to re-marshal extracted fields: %w", err)
	}
	// Unmarshal onto the existing brief: present fields override, absent
	// fields are untouched.
	if err := json.Unmarshal(merged, &record.Brief); err != nil {
		return fmt.Errorf("failed to merge extracted fields: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slog.Debug("Brief extraction merged fields", "conversationID", record.Brief.ConversationID, "fields", strings.Join(keys, ","))
	return nil
}

// pruneEmptyFields drops empty strings, empty arrays, and nulls so a sloppy
// extraction can never erase an answer the user already gave.
func pruneEmptyFields(fields map[string]json.RawMessage) {
	for k, v := range fields {
		trimmed := strings.TrimSpace(string(v))
		if trimmed == `""` || trimmed == "[]" || trimmed == "null" || trimmed == "{}" {
			delete(fields, k)
		}
	}
}

// nextBriefQuestion picks the follow-up for the first missing field.
func nextBriefQuestion(report brief.Report) string {
	if report.Complete() {
		return ""
	}
	field := report.MissingFields[0]
	if q, ok := briefQuestions[field]; ok {
		return q
	}
	return fmt.Sprintf("Could you tell me about the %s for this content?", strings.ReplaceAll(field, "_", " "))
}
