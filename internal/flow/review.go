package flow

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/canokcuer/wellspring/internal/models"
)

// Platform word count ceilings for the review step. A draft over the ceiling
// is flagged, not rejected outright.
var platformWordLimits = map[models.Platform]int{
	models.PlatformInstagram: 300,
	models.PlatformTikTok:    200,
	models.PlatformFacebook:  400,
	models.PlatformLinkedIn:  700,
	models.PlatformEmail:     1000,
	models.PlatformBlog:      2500,
}

// loudTones are tones where shouting is acceptable. For everything else,
// all-caps words and stacked exclamation marks are flagged.
var loudTones = []string{"bold", "playful", "excited", "energetic", "fun", "loud"}

var numberPattern = regexp.MustCompile(`\d[\d.,]*`)

// reviewDraft inspects a storytelling response against the brief and the
// wellness context it was generated from. It returns a list of issues; an
// empty list means the draft passes. The checks are deliberately mechanical;
// semantic quality is the user's call, this step only catches drafts that
// ignore their own inputs.
func reviewDraft(story *models.StorytellingResponse, wellness *models.WellnessResponse, b models.ContentBrief) []string {
	var issues []string

	if !addressesPainArea(story.Content, b.PainArea) {
		issues = append(issues, fmt.Sprintf("content does not address the stated pain area (%s)", b.PainArea))
	}
	if unsupported := unsupportedNumbers(story, wellness, b); len(unsupported) > 0 {
		issues = append(issues, fmt.Sprintf("content contains figures not backed by verified facts or the brief: %s", strings.Join(unsupported, ", ")))
	}
	if !toneMatches(story, b.Tone) {
		issues = append(issues, fmt.Sprintf("content shouts, which conflicts with the requested tone (%s)", b.Tone))
	}
	if issue := platformFit(story, b.Platform); issue != "" {
		issues = append(issues, issue)
	}
	if strings.TrimSpace(story.CallToAction) == "" {
		issues = append(issues, "call to action is missing")
	}

	return issues
}

// addressesPainArea checks that at least one content-bearing word of the pain
// area appears in the draft.
func addressesPainArea(content, painArea string) bool {
	if painArea == "" {
		return true
	}
	lower := strings.ToLower(content)
	for _, word := range strings.Fields(strings.ToLower(painArea)) {
		word = strings.Trim(word, ".,!?;:")
		if len(word) < 4 {
			continue
		}
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// unsupportedNumbers returns figures in the draft that appear in neither the
// verified facts nor the brief. Prices and durations the model invents are
// the most damaging hallucination class, and the cheapest to catch.
func unsupportedNumbers(story *models.StorytellingResponse, wellness *models.WellnessResponse, b models.ContentBrief) []string {
	supported := strings.Builder{}
	if wellness != nil {
		supported.WriteString(strings.Join(wellness.VerifiedFacts, " "))
		supported.WriteString(" " + wellness.WellnessGuidance)
		for _, p := range wellness.ProgramDetails {
			supported.WriteString(" " + p.Description)
		}
	}
	supported.WriteString(" " + b.PricePoints + " " + b.CampaignPrice + " " + b.CampaignDuration + " " + b.CampaignDeadline)
	haystack := supported.String()

	var unsupported []string
	for _, num := range numberPattern.FindAllString(story.Content, -1) {
		trimmed := strings.TrimRight(num, ".,")
		if trimmed == "" || strings.Contains(haystack, trimmed) {
			continue
		}
		unsupported = append(unsupported, trimmed)
	}
	return unsupported
}

// toneMatches flags shouting in drafts whose requested tone isn't loud.
func toneMatches(story *models.StorytellingResponse, tone string) bool {
	lowerTone := strings.ToLower(tone)
	for _, loud := range loudTones {
		if strings.Contains(lowerTone, loud) {
			return true
		}
	}

	if strings.Count(story.Content, "!") > 2 {
		return false
	}
	for _, word := range strings.Fields(story.Content) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(word) >= 4 && word == strings.ToUpper(word) && word != strings.ToLower(word) {
			return false
		}
	}
	return true
}

// platformFit checks the draft against platform conventions.
func platformFit(story *models.StorytellingResponse, platform models.Platform) string {
	if limit, ok := platformWordLimits[platform]; ok && story.WordCount > limit {
		return fmt.Sprintf("content is %d words, over the %d-word ceiling for %s", story.WordCount, limit, platform)
	}
	if (platform == models.PlatformInstagram || platform == models.PlatformTikTok) && len(story.Hashtags) == 0 {
		return fmt.Sprintf("no hashtags for %s content", platform)
	}
	return ""
}
