// Package brief provides completeness validation for content briefs.
//
// The validator is a pure function used as a gate: the orchestration state
// machine may not transition into a content-generation state while the
// report lists any missing field.
package brief

import (
	"github.com/canokcuer/wellspring/internal/models"
)

// Report lists every required field still missing from a brief, in the order
// the fields are asked for during the conversation.
type Report struct {
	MissingFields []string `json:"missing_fields"`
}

// Complete reports whether the brief satisfied the field-completeness policy.
func (r Report) Complete() bool {
	return len(r.MissingFields) == 0
}

// Check validates a brief against the field-completeness policy. A brief is
// complete iff all required scalar and collection fields are non-empty AND,
// when the funnel stage is conversion, all conditional campaign fields are
// answered. Pure function, no side effects.
func Check(b models.ContentBrief) Report {
	var missing []string

	scalarChecks := []struct {
		name  string
		empty bool
	}{
		{"target_audience", b.TargetAudience == ""},
		{"pain_area", b.PainArea == ""},
		{"compliance_level", b.ComplianceLevel == ""},
		{"funnel_stage", b.FunnelStage == ""},
		{"value_proposition", b.ValueProposition == ""},
		{"desired_action", b.DesiredAction == ""},
		{"tone", b.Tone == ""},
		{"constraints", b.Constraints == ""},
		{"platform", b.Platform == ""},
		{"price_points", b.PricePoints == ""},
	}
	for _, c := range scalarChecks {
		if c.empty {
			missing = append(missing, c.name)
		}
	}

	if len(b.SpecificPrograms) == 0 {
		missing = append(missing, "specific_programs")
	}
	if len(b.SpecificCenters) == 0 {
		missing = append(missing, "specific_centers")
	}
	if len(b.KeyMessages) == 0 {
		missing = append(missing, "key_messages")
	}

	if b.FunnelStage == models.FunnelConversion {
		missing = append(missing, checkCampaignFields(b)...)
	}

	return Report{MissingFields: missing}
}

// checkCampaignFields validates the conditional campaign fields required for
// conversion-stage briefs.
func checkCampaignFields(b models.ContentBrief) []string {
	if b.HasCampaign == nil {
		return []string{"has_campaign"}
	}
	if !*b.HasCampaign {
		return nil
	}

	var missing []string
	if b.CampaignPrice == "" {
		missing = append(missing, "campaign_price")
	}
	if b.CampaignDuration == "" {
		missing = append(missing, "campaign_duration")
	}
	if b.CampaignCenter == "" {
		missing = append(missing, "campaign_center")
	}
	if b.CampaignDeadline == "" {
		missing = append(missing, "campaign_deadline")
	}
	return missing
}
