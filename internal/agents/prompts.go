// Package agents prompt construction. Prompts keep the full brief and
// wellness context inline; truncating context before the model sees it is a
// known failure mode.
package agents

import (
	"fmt"
	"strings"

	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/retrieval"
)

const wellnessSystemPrompt = `You are a wellness advisor for a premium wellness retreat brand.
You verify claims about wellness programs, centers, and health practices against the knowledge passages provided to you.
Rules:
- Every entry in verified_facts must be directly supported by a provided passage or an explicit brief field.
- A claim you cannot support goes into warnings, never into verified_facts.
- Never invent programs, centers, prices, or health claims.
- When compliance_level is "high", exclude any claim that could read as a medical promise.
Respond with only a JSON object matching this shape:
{"verified_facts": [], "program_details": [{"name": "", "description": ""}], "center_info": [{"name": "", "description": ""}], "wellness_guidance": "", "confidence_level": "low|medium|high", "warnings": []}`

const storytellerSystemPrompt = `You are a marketing storyteller for a premium wellness retreat brand.
You write platform-native content grounded strictly in the verified facts provided; you never add factual claims of your own.
The content must explicitly address the audience's stated pain area and close with a clear call to action.
Respond with only a JSON object matching this shape:
{"hook": "", "hook_type": "", "content": "", "call_to_action": "", "hashtags": [], "open_loops": [], "framework": "", "word_count": 0, "alternative_hooks": [], "confidence_notes": ""}`

const feedbackSystemPrompt = `You analyze user feedback on a wellness marketing draft.
Separate the feedback into factual-accuracy issues (wrong programs, centers, prices, health claims) and storytelling issues (tone, structure, hook, platform fit, call to action).
List concrete revision requests separately. Do not classify; only extract.
Respond with only a JSON object matching this shape:
{"wellness_issues": [], "storytelling_issues": [], "specific_requests": [], "suggested_action": ""}`

// buildWellnessUserPrompt assembles the advisor's user message from the
// request and the retrieved knowledge passages.
func buildWellnessUserPrompt(req models.WellnessRequest, results []retrieval.Result) string {
	var b strings.Builder
	briefJSON, _ := req.Brief.ToJSON()

	b.WriteString("Question: " + req.Query + "\n\n")
	b.WriteString("Content brief:\n" + briefJSON + "\n\n")
	if req.Context != "" {
		b.WriteString("Additional context: " + req.Context + "\n\n")
	}
	if len(req.SpecificTopics) > 0 {
		b.WriteString("Topics to cover: " + strings.Join(req.SpecificTopics, ", ") + "\n\n")
	}

	if len(results) == 0 {
		b.WriteString("No knowledge passages were retrieved. Produce no verified_facts; explain the gap in warnings and wellness_guidance.\n")
		return b.String()
	}

	b.WriteString("Knowledge passages:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, r.Chunk.Source, r.Chunk.Text)
	}
	b.WriteString("Verify your claims against these passages only.")
	return b.String()
}

// buildStorytellerUserPrompt assembles the storyteller's user message. The
// brief and the wellness response are passed whole.
func buildStorytellerUserPrompt(req models.StorytellingRequest, framework string) string {
	var b strings.Builder
	briefJSON, _ := req.Brief.ToJSON()
	wellnessJSON, _ := req.Wellness.ToJSON()

	b.WriteString("Content brief:\n" + briefJSON + "\n\n")
	b.WriteString("Verified wellness context:\n" + wellnessJSON + "\n\n")
	fmt.Fprintf(&b, "Write the content using the %s framework, formatted natively for %s.\n", framework, req.Brief.Platform)
	fmt.Fprintf(&b, "The content must explicitly address this pain area: %s.\n", req.Brief.PainArea)

	if req.UserVoice != "" {
		b.WriteString("Brand voice: " + req.UserVoice + "\n")
	}
	if req.StyleGuidance != "" {
		b.WriteString("Style guidance: " + req.StyleGuidance + "\n")
	}
	if req.ConversationContext != "" {
		b.WriteString("Conversation context: " + req.ConversationContext + "\n")
	}
	if req.PreviousFeedback != "" {
		fmt.Fprintf(&b, "\nThis is revision %d. Address this feedback from the previous draft:\n%s\n", req.IterationNumber, req.PreviousFeedback)
	}
	return b.String()
}

// buildFeedbackUserPrompt assembles the analyzer's user message.
func buildFeedbackUserPrompt(req models.FeedbackRequest) string {
	var b strings.Builder
	storyJSON, _ := req.Story.ToJSON()

	b.WriteString("User feedback:\n" + req.Feedback + "\n\n")
	b.WriteString("Draft under review:\n" + storyJSON + "\n\n")
	if len(req.WellnessFacts) > 0 {
		b.WriteString("Verified facts behind the draft:\n- " + strings.Join(req.WellnessFacts, "\n- ") + "\n")
	}
	return b.String()
}
