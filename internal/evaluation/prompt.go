package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"jobscout/internal/source"
)

// Rubric selects the decision policy applied by the model. Standard suits
// board postings that already carry structured fields; strict adds hard
// score ceilings for free-text posts that may not even be job postings.
type Rubric string

const (
	RubricStandard Rubric = "standard"
	RubricStrict   Rubric = "strict"
)

// ParseRubric maps a configuration value onto a rubric, falling back to the
// provided default when the value is empty.
func ParseRubric(value string, fallback Rubric) (Rubric, error) {
	switch Rubric(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return fallback, nil
	case RubricStandard:
		return RubricStandard, nil
	case RubricStrict:
		return RubricStrict, nil
	default:
		return "", fmt.Errorf("unknown rubric: %s", value)
	}
}

type promptPayload struct {
	Candidate    candidatePayload  `json:"candidate"`
	Job          map[string]string `json:"job"`
	Instructions []string          `json:"instructions"`
	OutputFormat map[string]string `json:"output_format"`
}

type candidatePayload struct {
	Resume  string          `json:"resume"`
	Profile *profilePayload `json:"profile"`
}

type profilePayload struct {
	TargetSeniority []string `json:"target_seniority"`
	MustHave        []string `json:"must_have"`
	CanHave         []string `json:"can_have"`
	Avoid           []string `json:"avoid"`
	Notes           string   `json:"notes"`
}

var baseOutputFormat = map[string]string{
	"score":          "number (0-100)",
	"decision":       "string ('apply' or 'skip')",
	"confidence":     "number (0.0-1.0)",
	"reasons":        "array of strings (main reasons)",
	"matched_skills": "array of strings (technologies that match)",
	"missing_skills": "array of strings (requirements that are missing)",
	"notes":          "string (extra remarks)",
}

// buildSystemPrompt fixes the output language and the response shape, and
// for the strict rubric states the hard decision rules up front.
func buildSystemPrompt(rubric Rubric, language string) string {
	if rubric == RubricStrict {
		return fmt.Sprintf(
			"You are a rigorous job posting evaluator. "+
				"ALL responses must be written exclusively in %s. "+
				"Do not mix languages. "+
				"Assess the fit between the candidate and the posting based on the resume and preferences. "+
				"ALWAYS follow these decision rules:"+
				"- ANY posting that violates one of the candidate's 'avoid' rules must get score <= 30 and decision 'skip'"+
				"- On-site or hybrid postings when the candidate wants remote must get score <= 20 and decision 'skip'"+
				"- Fullstack postings requiring an undesired backend stack must get score <= 25 and decision 'skip'"+
				"- Respond ONLY with a valid JSON object (no markdown, no extra prose)."+
				"If the post is not about an open position, respond 'skip' and explain in the notes.",
			language,
		)
	}

	return fmt.Sprintf(
		"You are a job posting evaluator. "+
			"ALL responses must be written exclusively in %s. "+
			"Do not mix languages. "+
			"Assess the fit between the candidate and the posting based on the resume and preferences. "+
			"Respond ONLY with a valid JSON object (no markdown, no extra prose).",
		language,
	)
}

// buildUserPayload assembles the JSON-encoded user message: resume, profile
// constraints, posting content and the rubric instructions.
func buildUserPayload(rubric Rubric, posting *source.Posting, resume string, profile *Profile) (string, error) {
	payload := promptPayload{
		Candidate: candidatePayload{
			Resume: resume,
			Profile: &profilePayload{
				TargetSeniority: emptyUnlessSet(profile.TargetSeniority),
				MustHave:        emptyUnlessSet(profile.MustHave),
				CanHave:         emptyUnlessSet(profile.CanHave),
				Avoid:           emptyUnlessSet(profile.Avoid),
				Notes:           profile.Notes,
			},
		},
	}

	switch rubric {
	case RubricStrict:
		payload.Job = map[string]string{
			"post_text": posting.Content(),
		}
		payload.Instructions = strictInstructions()
		payload.OutputFormat = strictOutputFormat()
	default:
		payload.Job = map[string]string{
			"title":       posting.Title,
			"company":     posting.Company,
			"description": posting.Content(),
		}
		payload.Instructions = standardInstructions()
		payload.OutputFormat = baseOutputFormat
	}

	// Plain encoding keeps the rubric's comparison operators readable for
	// the model instead of > escapes.
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return "", fmt.Errorf("marshal evaluation payload: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

func standardInstructions() []string {
	return []string{
		"Compute a score from 0 to 100 based on the overall fit.",
		"If the posting mentions 'must_have' technologies, increase the score.",
		"If the posting lists several alternative technologies (e.g. React, Vue or Angular), the candidate only needs to master one of them to increase the score.",
		"Do not penalize the candidate for avoiding technologies that are optional alternatives in the posting, as long as they master at least one of the required technologies.",
		"If the posting mentions 'avoid' technologies, reduce the score drastically, unless they are optional alternatives and the candidate masters another equivalent technology.",
		"If the seniority does not match 'target_seniority', reduce the score.",
		"If the description is vague or incomplete, reduce the 'confidence'.",
		"Decide 'apply' if score >= 70 and there are no red flags, otherwise 'skip'.",
	}
}

func strictInstructions() []string {
	return []string{
		"Compute a score from 0 to 100 based on the overall fit.",
		"CRITICAL RULES (violating one = score <= 30 and decision 'skip'):",
		"- If the posting mentions 'avoid' technologies, reduce the score drastically (<= 30).",
		"- If the posting is on-site or hybrid and the candidate wants remote, score <= 20.",
		"- If the posting is fullstack with an undesired backend (e.g. Node.js when the candidate avoids it), score <= 25.",
		"- If the posting mentions 'must_have' technologies, increase the score BUT DO NOT COMPENSATE red flags.",
		"If the seniority does not match 'target_seniority', reduce the score.",
		"If the description is vague or incomplete, reduce the 'confidence'.",
		"FINAL decision: 'apply' ONLY if score >= 70 AND NO critical red flag, otherwise 'skip'.",
	}
}

// strictOutputFormat extends the base shape with title and company, which
// free-text posts do not carry on their own.
func strictOutputFormat() map[string]string {
	format := make(map[string]string, len(baseOutputFormat)+2)
	for k, v := range baseOutputFormat {
		format[k] = v
	}
	format["title"] = "string (posting title)"
	format["company"] = "string (company name)"
	return format
}

func emptyUnlessSet(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
