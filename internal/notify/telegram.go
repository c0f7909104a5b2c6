package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/source"
)

const telegramAPIURL = "https://api.telegram.org"

// Telegram posts matches to a Telegram chat via the Bot API.
type Telegram struct {
	token      string
	chatID     string
	logger     *zap.Logger
	APIURL     string
	HTTPClient *http.Client
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string, logger *zap.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram token and chat id are required")
	}

	return &Telegram{
		token:  strings.TrimSpace(token),
		chatID: strings.TrimSpace(chatID),
		logger: logger,
		APIURL: telegramAPIURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends the formatted match message. Failures are logged and reported
// through the returned bool; they never block the caller.
func (t *Telegram) Notify(ctx context.Context, posting *source.Posting, result *evaluation.EvalResult) bool {
	payload, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  buildMessage(posting, result),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		t.logger.Error("marshaling telegram message", zap.Error(err))
		return false
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.APIURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		t.logger.Error("building telegram request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		t.logger.Error("sending telegram notification", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Error("telegram rejected notification",
			zap.String("status", resp.Status),
			zap.String("body", strings.TrimSpace(string(body))),
		)
		return false
	}

	t.logger.Info("notification sent", zap.String("chat_id", t.chatID))

	return true
}

func buildMessage(posting *source.Posting, result *evaluation.EvalResult) string {
	var msg strings.Builder

	msg.WriteString("🔔 *New matching posting!*\n\n")
	msg.WriteString(fmt.Sprintf("🔥 *%s*\n", escapeMarkdown(titleFor(posting, result))))
	msg.WriteString(fmt.Sprintf("🏢 Company: %s\n", escapeMarkdown(companyFor(posting, result))))
	msg.WriteString(fmt.Sprintf("🎯 Score: *%.0f/100*\n", result.Score))
	msg.WriteString(fmt.Sprintf("💪 Confidence: %.0f%%\n\n", result.Confidence*100))

	if len(result.MatchedSkills) > 0 {
		msg.WriteString(fmt.Sprintf("✅ *Matching skills:*\n%s\n\n", escapeJoined(result.MatchedSkills)))
	}

	if len(result.MissingSkills) > 0 {
		msg.WriteString(fmt.Sprintf("❌ *Missing skills:*\n%s\n\n", escapeJoined(result.MissingSkills)))
	}

	if len(result.Reasons) > 0 {
		msg.WriteString("💡 *Main reasons:*\n")
		for _, reason := range result.Reasons {
			msg.WriteString(fmt.Sprintf("• %s\n", escapeMarkdown(reason)))
		}
		msg.WriteString("\n")
	}

	if notes := strings.TrimSpace(result.Notes); notes != "" {
		msg.WriteString(fmt.Sprintf("📝 %s\n\n", escapeMarkdown(notes)))
	}

	if posting.ApplyLink != "" {
		msg.WriteString(fmt.Sprintf("👉 [Apply now!](%s)\n", posting.ApplyLink))
	}
	if posting.Link != "" {
		msg.WriteString(fmt.Sprintf("🔎 [See the posting](%s)\n", posting.Link))
	}

	return msg.String()
}

func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "_", `\_`)
	return strings.ReplaceAll(text, "*", `\*`)
}

func escapeJoined(items []string) string {
	escaped := make([]string, 0, len(items))
	for _, item := range items {
		escaped = append(escaped, escapeMarkdown(item))
	}
	return strings.Join(escaped, ", ")
}
