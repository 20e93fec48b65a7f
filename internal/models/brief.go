// Package models defines the core data structures for Wellspring.
//
// It includes the content brief, knowledge chunk, sub-agent request/response
// types, and flow state types shared across modules.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ComplianceLevel indicates how strictly generated content must stick to
// verified claims.
type ComplianceLevel string

const (
	ComplianceHigh ComplianceLevel = "high"
	ComplianceLow  ComplianceLevel = "low"
)

// FunnelStage is the customer-journey phase governing tone and required
// brief fields.
type FunnelStage string

const (
	FunnelAwareness     FunnelStage = "awareness"
	FunnelConsideration FunnelStage = "consideration"
	FunnelConversion    FunnelStage = "conversion"
	FunnelLoyalty       FunnelStage = "loyalty"
)

// Platform is the publishing target for generated content.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformEmail     Platform = "email"
	PlatformBlog      Platform = "blog"
)

// IsValidComplianceLevel checks if the given compliance level is supported.
func IsValidComplianceLevel(c ComplianceLevel) bool {
	switch c {
	case ComplianceHigh, ComplianceLow:
		return true
	default:
		return false
	}
}

// IsValidFunnelStage checks if the given funnel stage is supported.
func IsValidFunnelStage(f FunnelStage) bool {
	switch f {
	case FunnelAwareness, FunnelConsideration, FunnelConversion, FunnelLoyalty:
		return true
	default:
		return false
	}
}

// IsValidPlatform checks if the given platform is supported.
func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformTikTok, PlatformEmail, PlatformBlog:
		return true
	default:
		return false
	}
}

// ContentBrief is the structured requirements record accumulated over a
// conversation before content generation may begin. Fields are mutated
// incrementally as the user answers; the brief is never deleted, only
// extended or corrected. Once handed to a sub-agent request it is passed as
// a deep copy and treated as read-only.
type ContentBrief struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Required scalar fields
	TargetAudience   string          `json:"target_audience"`
	PainArea         string          `json:"pain_area"`
	ComplianceLevel  ComplianceLevel `json:"compliance_level"`
	FunnelStage      FunnelStage     `json:"funnel_stage"`
	ValueProposition string          `json:"value_proposition"`
	DesiredAction    string          `json:"desired_action"`
	Tone             string          `json:"tone"`
	Constraints      string          `json:"constraints"`
	Platform         Platform        `json:"platform"`
	PricePoints      string          `json:"price_points"`

	// Required collection fields
	SpecificPrograms []string `json:"specific_programs"`
	SpecificCenters  []string `json:"specific_centers"`
	KeyMessages      []string `json:"key_messages"`

	// Conditional campaign fields, required only when FunnelStage is
	// conversion. HasCampaign is a pointer so that "unanswered" is
	// distinguishable from an explicit "no campaign".
	HasCampaign      *bool  `json:"has_campaign,omitempty"`
	CampaignPrice    string `json:"campaign_price,omitempty"`
	CampaignDuration string `json:"campaign_duration,omitempty"`
	CampaignCenter   string `json:"campaign_center,omitempty"`
	CampaignDeadline string `json:"campaign_deadline,omitempty"`
}

// Clone returns a deep copy of the brief. Sub-agent requests carry clones so
// that later turns cannot mutate a request already in flight.
func (b *ContentBrief) Clone() ContentBrief {
	cp := *b
	cp.SpecificPrograms = append([]string(nil), b.SpecificPrograms...)
	cp.SpecificCenters = append([]string(nil), b.SpecificCenters...)
	cp.KeyMessages = append([]string(nil), b.KeyMessages...)
	if b.HasCampaign != nil {
		v := *b.HasCampaign
		cp.HasCampaign = &v
	}
	return cp
}

// ToJSON serializes the brief to a JSON string.
func (b *ContentBrief) ToJSON() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content brief: %w", err)
	}
	return string(data), nil
}

// FromJSON deserializes a brief from a JSON string.
func (b *ContentBrief) FromJSON(jsonStr string) error {
	if err := json.Unmarshal([]byte(jsonStr), b); err != nil {
		return fmt.Errorf("failed to unmarshal content brief: %w", err)
	}
	return nil
}
