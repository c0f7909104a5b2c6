// Package evaluation scores postings against a candidate profile by calling
// an external reasoning service and validating its reply into a fixed-shape
// result.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"jobscout/internal/logger"
	"jobscout/internal/source"
)

const defaultMaxLogLength = 200

// UpstreamError is a non-success status returned by the reasoning service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("evaluation service returned status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError means no JSON object could be located in the model
// reply. It is a hard failure: a silent zero-score default would be
// indistinguishable from a legitimately bad fit.
type MalformedResponseError struct {
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no valid JSON in evaluation response: %s", e.Snippet)
}

// Provider issues one completion request to a reasoning service.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Evaluator turns a (posting, resume, profile) triple into an EvalResult.
type Evaluator struct {
	provider  Provider
	logger    *zap.Logger
	maxLogLen int
}

// New creates an Evaluator on top of the given provider.
func New(provider Provider, log *zap.Logger, maxLogLength int) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Evaluator{
		provider:  provider,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Evaluate requests a fit verdict for the posting under the given rubric.
// Transport faults, non-success statuses and unparseable replies are all
// propagated; the caller decides whether to skip the posting or abort.
func (e *Evaluator) Evaluate(ctx context.Context, posting *source.Posting, resume string, profile *Profile, rubric Rubric) (*EvalResult, error) {
	if posting == nil {
		return nil, fmt.Errorf("posting is required")
	}
	if profile == nil {
		profile = &Profile{}
	}

	system := buildSystemPrompt(rubric, profile.OutputLanguage())
	user, err := buildUserPayload(rubric, posting, resume, profile)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("evaluation request",
		zap.String("posting_id", posting.ID),
		zap.String("rubric", string(rubric)),
		zap.String("model", e.provider.Model()),
		zap.Int("payload_length", utf8.RuneCountInString(user)),
	)

	raw, err := e.provider.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("evaluation response",
		zap.String("posting_id", posting.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	data, err := extractObject(raw)
	if err != nil {
		e.logger.Error("evaluation response is not parseable",
			zap.String("posting_id", posting.ID),
			zap.String("response_snippet", logger.TruncateForLog(raw, e.maxLogLen)),
		)
		return nil, err
	}

	return ResultFromMap(data)
}

// extractObject locates the JSON object in a possibly prose-wrapped reply.
// Strategy: strict whole-text parse first, then the widest brace-delimited
// span. Anything else is a MalformedResponseError.
func extractObject(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil {
		return data, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, &MalformedResponseError{Snippet: logger.TruncateForLog(raw, 500)}
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &data); err != nil {
		return nil, &MalformedResponseError{Snippet: logger.TruncateForLog(raw, 500)}
	}

	return data, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}
