package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

var sleep = time.Sleep

// contentGenerator matches the slice of the genai client used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is the alternative evaluation provider backed by the Gemini API.
type Gemini struct {
	models     contentGenerator
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGemini creates a Gemini provider with bounded retries for transient
// server-side errors.
func NewGemini(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Gemini{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		logger:     log,
	}, nil
}

// Complete sends the prompt to Gemini and returns the first textual
// response. Server-side 5xx errors are retried with linear backoff up to
// the configured attempt count.
func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: user}},
	}}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Debug("retrying gemini request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			sleep(time.Duration(attempt) * time.Second)
		}

		resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			lastErr = err
			var apiErr genai.APIError
			if errors.As(err, &apiErr) {
				if apiErr.Code >= 500 {
					continue
				}
				g.logger.Error("gemini request rejected",
					zap.Int("status", apiErr.Code),
					zap.String("body", apiErr.Message),
				)
				return "", &UpstreamError{StatusCode: apiErr.Code, Body: apiErr.Message}
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		output := collectText(resp)
		if output == "" {
			return "", errors.New("gemini api returned empty response")
		}

		return output, nil
	}

	return "", fmt.Errorf("generate content after %d retries: %w", g.maxRetries, lastErr)
}

func (g *Gemini) Model() string { return g.model }

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}
