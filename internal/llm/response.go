package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/bid-pilot/internal/types"
)

// resultSchema validates the JSON shape providers must return for a
// scoring call. score and reason are mandatory; the rest is advisory.
const resultSchema = `{
	"type": "object",
	"required": ["score", "reason"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 10},
		"reason": {"type": "string", "minLength": 1},
		"proposal": {"type": "string"},
		"suggested_bid": {"type": "number", "minimum": 0},
		"estimated_hours": {"type": "number", "minimum": 0},
		"hourly_rate": {"type": "number", "minimum": 0},
		"risk_keywords": {"type": "array", "items": {"type": "string"}}
	}
}`

var resultSchemaLoader = gojsonschema.NewStringLoader(resultSchema)

// providerPayload mirrors the JSON contract providers answer with
type providerPayload struct {
	Score          float64  `json:"score"`
	Reason         string   `json:"reason"`
	Proposal       string   `json:"proposal"`
	SuggestedBid   float64  `json:"suggested_bid"`
	EstimatedHours float64  `json:"estimated_hours"`
	HourlyRate     float64  `json:"hourly_rate"`
	RiskKeywords   []string `json:"risk_keywords"`
}

// ParseProviderResult validates and decodes a raw provider response into a
// ProviderResult. Markdown fencing and conversational wrapping around the
// JSON are tolerated; a payload failing schema validation is an error.
func ParseProviderResult(raw, model string) (*types.ProviderResult, error) {
	cleaned := CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty provider response")
	}

	result, err := gojsonschema.Validate(resultSchemaLoader, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("provider response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("provider response failed schema validation: %s", strings.Join(msgs, "; "))
	}

	var payload providerPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}

	return &types.ProviderResult{
		Score:          clampScore(payload.Score),
		Reason:         strings.TrimSpace(payload.Reason),
		Proposal:       SanitizeProposal(payload.Proposal),
		SuggestedBid:   payload.SuggestedBid,
		EstimatedHours: int(payload.EstimatedHours),
		HourlyRate:     payload.HourlyRate,
		RiskKeywords:   payload.RiskKeywords,
		ProviderModel:  model,
	}, nil
}

var (
	headingLine = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldMarkup  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	multiBlank  = regexp.MustCompile(`\n{3,}`)
)

// SanitizeProposal strips markdown artifacts models leave in proposal text
// despite plain-text instructions: headings, bold markup, code fences, and
// excess blank lines.
func SanitizeProposal(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "```", "")
	text = headingLine.ReplaceAllString(text, "")
	text = boldMarkup.ReplaceAllString(text, "$1")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
