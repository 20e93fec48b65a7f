package models

import (
	"testing"
)

func TestContentBriefJSONRoundTrip(t *testing.T) {
	yes := true
	brief := ContentBrief{
		ConversationID:   "conv-1",
		TargetAudience:   "busy professionals",
		PainArea:         "chronic stress",
		ComplianceLevel:  ComplianceHigh,
		FunnelStage:      FunnelConversion,
		ValueProposition: "medical-grade recovery",
		DesiredAction:    "book a consultation",
		Tone:             "warm",
		Constraints:      "no medical claims",
		Platform:         PlatformInstagram,
		PricePoints:      "from $1200",
		SpecificPrograms: []string{"Master Detox"},
		SpecificCenters:  []string{"Alpine Center"},
		KeyMessages:      []string{"rest is productive"},
		HasCampaign:      &yes,
		CampaignPrice:    "$999",
		CampaignDuration: "7 days",
		CampaignCenter:   "Alpine Center",
		CampaignDeadline: "end of month",
	}

	jsonStr, err := brief.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var restored ContentBrief
	if err := restored.FromJSON(jsonStr); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}

	if restored.PainArea != brief.PainArea {
		t.Errorf("expected pain area %q, got %q", brief.PainArea, restored.PainArea)
	}
	if restored.HasCampaign == nil || !*restored.HasCampaign {
		t.Error("expected has_campaign to survive round trip")
	}
	if len(restored.KeyMessages) != 1 || restored.KeyMessages[0] != "rest is productive" {
		t.Errorf("unexpected key messages: %v", restored.KeyMessages)
	}
}

func TestContentBriefCloneIsDeep(t *testing.T) {
	yes := true
	brief := ContentBrief{
		SpecificPrograms: []string{"Master Detox"},
		HasCampaign:      &yes,
	}

	cp := brief.Clone()
	cp.SpecificPrograms[0] = "changed"
	*cp.HasCampaign = false

	if brief.SpecificPrograms[0] != "Master Detox" {
		t.Error("clone shares specific_programs backing array with original")
	}
	if !*brief.HasCampaign {
		t.Error("clone shares has_campaign pointer with original")
	}
}

func TestEnumValidators(t *testing.T) {
	if !IsValidFunnelStage(FunnelAwareness) || IsValidFunnelStage("upsell") {
		t.Error("funnel stage validation incorrect")
	}
	if !IsValidComplianceLevel(ComplianceLow) || IsValidComplianceLevel("medium") {
		t.Error("compliance level validation incorrect")
	}
	if !IsValidPlatform(PlatformEmail) || IsValidPlatform("myspace") {
		t.Error("platform validation incorrect")
	}
	if !IsValidFeedbackType(FeedbackBoth) || IsValidFeedbackType("mixed") {
		t.Error("feedback type validation incorrect")
	}
	if !IsValidSignalOutcome(SignalAccepted) || IsValidSignalOutcome("maybe") {
		t.Error("signal outcome validation incorrect")
	}
}
