package evaluation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultOpenAIModel = "gpt-4o-mini"

// chatCompleter matches the slice of the go-openai client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI is the default evaluation provider, speaking the chat-completions
// wire format against api.openai.com or any compatible endpoint.
type OpenAI struct {
	client chatCompleter
	model  string
	logger *zap.Logger
}

// NewOpenAI creates a chat-completions provider. baseURL may be empty for
// the default endpoint. The timeout bounds every request; the call fails
// rather than hang past it.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration, log *zap.Logger) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("evaluation api key is required")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultOpenAIModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: log,
	}, nil
}

// Complete sends one system+user exchange and returns the reply content.
// Non-2xx statuses surface as UpstreamError with status and body logged;
// the credential never appears in logs or error messages.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			o.logger.Error("evaluation service error",
				zap.Int("status", apiErr.HTTPStatusCode),
				zap.String("body", apiErr.Message),
			)
			return "", &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("evaluation request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("evaluation service returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("evaluation service returned empty content")
	}

	return content, nil
}

func (o *OpenAI) Model() string { return o.model }
