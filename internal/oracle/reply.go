package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// GroundingReply is the oracle's answer to "where is region X".
type GroundingReply struct {
	BBox  *[4]float64 `json:"bbox"`
	Found bool        `json:"found"`
}

// AssessmentReply is the oracle's answer to "how good is this box".
// CaptionStatus and CaptionTextVisible are only populated in the
// with-auxiliary mode and are informational.
type AssessmentReply struct {
	QualityScore       float64     `json:"quality_score"`
	CaptionStatus      string      `json:"caption_status"`
	CaptionTextVisible string      `json:"caption_text_visible"`
	Issues             []string    `json:"issues"`
	NeedsRefinement    bool        `json:"needs_refinement"`
	RefinedBBox        *[4]float64 `json:"refined_bbox"`
}

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanReply strips reasoning tags and markdown code fences that vision
// models wrap around their JSON despite instructions not to.
func CleanReply(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "<think>") {
		s = strings.TrimSpace(thinkBlockRe.ReplaceAllString(s, ""))
	}
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}

// ParseGroundingReply decodes a grounding reply. Any unparsable input is an
// error; callers treat that the same as an explicit not-found.
func ParseGroundingReply(raw string) (*GroundingReply, error) {
	var reply GroundingReply
	if err := json.Unmarshal([]byte(CleanReply(raw)), &reply); err != nil {
		return nil, fmt.Errorf("malformed grounding reply: %w", err)
	}
	return &reply, nil
}

// ParseAssessmentReply decodes an assessment reply. Any unparsable input is
// an error; callers stop refining and keep the current box.
func ParseAssessmentReply(raw string) (*AssessmentReply, error) {
	var reply AssessmentReply
	if err := json.Unmarshal([]byte(CleanReply(raw)), &reply); err != nil {
		return nil, fmt.Errorf("malformed assessment reply: %w", err)
	}
	return &reply, nil
}
