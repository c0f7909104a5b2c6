// Package notify delivers qualifying matches to a human-facing channel.
package notify

import (
	"context"

	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/source"
)

// Notifier delivers one match. Notify reports success; it never panics or
// propagates an error past this boundary, so the orchestrator can treat
// delivery as best-effort.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, posting *source.Posting, result *evaluation.EvalResult) bool
}

// Console logs matches instead of sending them anywhere. Used when the chat
// channel is not configured.
type Console struct {
	logger *zap.Logger
}

// NewConsole creates a console notifier.
func NewConsole(logger *zap.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, posting *source.Posting, result *evaluation.EvalResult) bool {
	fields := []zap.Field{
		zap.String("title", titleFor(posting, result)),
		zap.String("company", companyFor(posting, result)),
		zap.Float64("score", result.Score),
		zap.Float64("confidence", result.Confidence),
		zap.String("link", posting.Link),
	}

	if len(result.Reasons) > 0 {
		fields = append(fields, zap.Strings("reasons", result.Reasons))
	}

	c.logger.Info("new matching posting found", fields...)

	return true
}

func titleFor(posting *source.Posting, result *evaluation.EvalResult) string {
	if posting.Title != "" {
		return posting.Title
	}
	if result.Title != "" {
		return result.Title
	}
	return "untitled"
}

func companyFor(posting *source.Posting, result *evaluation.EvalResult) string {
	if posting.Company != "" {
		return posting.Company
	}
	if result.Company != "" {
		return result.Company
	}
	return "n/a"
}
