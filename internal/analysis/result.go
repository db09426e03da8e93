package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/densematrix/idea-validator/pkg/validator"
)

// ErrMalformedResult indicates the analysis collaborator returned something
// that does not satisfy the report schema. Such responses surface as failures
// rather than silently empty reports.
var ErrMalformedResult = errors.New("malformed analysis result")

// Result is the structured validation report produced by the analysis
// collaborator. The section maps stay schemaless; only their presence and the
// score range are enforced at the boundary.
type Result struct {
	OverallScore         int            `json:"overall_score"`
	MarketAnalysis       map[string]any `json:"market_analysis"`
	CompetitionAnalysis  map[string]any `json:"competition_analysis"`
	TechnicalFeasibility map[string]any `json:"technical_feasibility"`
	BusinessModel        map[string]any `json:"business_model"`
	Risks                map[string]any `json:"risks"`
	Suggestions          map[string]any `json:"suggestions"`
	Summary              string         `json:"summary"`
}

// Validate enforces the report schema: required sections, summary, and the
// 0-100 score range.
func (r *Result) Validate() error {
	sections := map[string]map[string]any{
		"market_analysis":       r.MarketAnalysis,
		"competition_analysis":  r.CompetitionAnalysis,
		"technical_feasibility": r.TechnicalFeasibility,
		"business_model":        r.BusinessModel,
		"risks":                 r.Risks,
		"suggestions":           r.Suggestions,
	}

	rules := []validator.Rule{
		validator.IntBetween("overall_score", r.OverallScore, 0, 100),
		validator.RequiredString("summary", r.Summary),
	}
	for name, section := range sections {
		rules = append(rules, validator.Rule{
			Check: func() bool { return section != nil },
			Error: validator.ValidationError{Field: name, Message: "section is required"},
		})
	}

	if err := validator.Apply(rules...); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	return nil
}

// ParseResult decodes a collaborator response body into a validated Result.
// Models frequently wrap JSON in markdown code fences; those are stripped
// before decoding.
func ParseResult(content string) (*Result, error) {
	content = stripCodeFences(content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

func stripCodeFences(content string) string {
	if idx := strings.Index(content, "```json"); idx != -1 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx != -1 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	}
	return strings.TrimSpace(content)
}
