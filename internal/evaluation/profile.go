package evaluation

import "strings"

const defaultLanguage = "pt-BR"

// Profile describes the candidate's targets and constraints. It is loaded
// from configuration and passed unchanged into every evaluation request.
type Profile struct {
	TargetSeniority []string `json:"target_seniority" mapstructure:"target-seniority"`
	MustHave        []string `json:"must_have" mapstructure:"must-have"`
	CanHave         []string `json:"can_have" mapstructure:"can-have"`
	Avoid           []string `json:"avoid" mapstructure:"avoid"`
	Notes           string   `json:"notes" mapstructure:"notes"`
	// Language fixes the output language of generated text.
	Language string `json:"-" mapstructure:"language"`
}

// OutputLanguage returns the configured language or the default locale.
func (p *Profile) OutputLanguage() string {
	if p == nil {
		return defaultLanguage
	}
	if lang := strings.TrimSpace(p.Language); lang != "" {
		return lang
	}
	return defaultLanguage
}
