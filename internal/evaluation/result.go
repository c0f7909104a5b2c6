package evaluation

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	DecisionApply = "apply"
	DecisionSkip  = "skip"
)

// EvalResult is the structured verdict produced by one fit evaluation.
// Score is stored exactly as returned by the model; values outside the
// conventional 0-100 range are kept as-is so upstream misbehavior stays
// visible downstream.
type EvalResult struct {
	Score         float64  `json:"score" mapstructure:"score"`
	Decision      string   `json:"decision" mapstructure:"decision"`
	Confidence    float64  `json:"confidence" mapstructure:"confidence"`
	Reasons       []string `json:"reasons" mapstructure:"reasons"`
	MatchedSkills []string `json:"matched_skills" mapstructure:"matched_skills"`
	MissingSkills []string `json:"missing_skills" mapstructure:"missing_skills"`
	Notes         string   `json:"notes" mapstructure:"notes"`

	// Title and Company are filled by the model only for free-text posts
	// that carry no structured fields of their own.
	Title   string `json:"title,omitempty" mapstructure:"title"`
	Company string `json:"company,omitempty" mapstructure:"company"`
}

// ResultFromMap decodes a loosely typed object parsed from the model reply
// into a fixed-shape result. Missing fields degrade to a conservative
// verdict: score 0, decision "skip", confidence 0.5, empty lists and notes.
// Weak typing tolerates numbers arriving as strings.
func ResultFromMap(data map[string]any) (*EvalResult, error) {
	result := &EvalResult{
		Decision:      DecisionSkip,
		Confidence:    0.5,
		Reasons:       []string{},
		MatchedSkills: []string{},
		MissingSkills: []string{},
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode evaluation result: %w", err)
	}

	if result.Decision == "" {
		result.Decision = DecisionSkip
	}

	return result, nil
}
