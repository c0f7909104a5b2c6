package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/source"
)

func matchFixture() (*source.Posting, *evaluation.EvalResult) {
	posting := &source.Posting{
		ID:        "https://example.com/jobs/1",
		Title:     "Frontend_Developer",
		Company:   "Acme*Corp",
		Link:      "https://example.com/jobs/1",
		ApplyLink: "https://example.com/apply/1",
	}

	result := &evaluation.EvalResult{
		Score:         85,
		Decision:      "apply",
		Confidence:    0.9,
		Reasons:       []string{"react experience matches"},
		MatchedSkills: []string{"React", "TypeScript"},
		MissingSkills: []string{"GraphQL"},
		Notes:         "looks promising",
	}

	return posting, result
}

func TestBuildMessage(t *testing.T) {
	posting, result := matchFixture()

	message := buildMessage(posting, result)

	if !strings.Contains(message, `Frontend\_Developer`) {
		t.Fatalf("title not markdown-escaped: %s", message)
	}

	if !strings.Contains(message, `Acme\*Corp`) {
		t.Fatalf("company not markdown-escaped: %s", message)
	}

	if !strings.Contains(message, "Score: *85/100*") {
		t.Fatalf("score missing: %s", message)
	}

	if !strings.Contains(message, "Confidence: 90%") {
		t.Fatalf("confidence missing: %s", message)
	}

	if !strings.Contains(message, "React, TypeScript") {
		t.Fatalf("matched skills missing: %s", message)
	}

	if !strings.Contains(message, "[Apply now!](https://example.com/apply/1)") {
		t.Fatalf("apply link missing: %s", message)
	}
}

func TestBuildMessageUsesExtractedTitle(t *testing.T) {
	posting := &source.Posting{ID: "urn:1", Link: "https://example.com/feed/1"}
	result := &evaluation.EvalResult{Score: 75, Title: "Frontend Dev", Company: "Acme"}

	message := buildMessage(posting, result)

	if !strings.Contains(message, "Frontend Dev") || !strings.Contains(message, "Acme") {
		t.Fatalf("extracted fields not used: %s", message)
	}
}

func TestTelegramNotifySuccess(t *testing.T) {
	var got telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	telegram, err := NewTelegram("token", "chat-1", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	telegram.APIURL = server.URL

	posting, result := matchFixture()
	if !telegram.Notify(context.Background(), posting, result) {
		t.Fatalf("expected notify to succeed")
	}

	if got.ChatID != "chat-1" {
		t.Fatalf("unexpected chat id: %s", got.ChatID)
	}

	if got.ParseMode != "Markdown" || !got.DisableWebPagePreview {
		t.Fatalf("unexpected message options: %+v", got)
	}
}

func TestTelegramNotifyFailureReturnsFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	telegram, err := NewTelegram("token", "chat-1", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	telegram.APIURL = server.URL

	posting, result := matchFixture()
	if telegram.Notify(context.Background(), posting, result) {
		t.Fatalf("expected notify to report failure")
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if _, err := NewTelegram("", "chat", zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing token")
	}

	if _, err := NewTelegram("token", "", zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing chat id")
	}
}
