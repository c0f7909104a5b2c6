package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	boardJobsPath    = "/api/jobs"
	boardUserAgent   = "jobscout (job search agent)"
	boardContentType = "application/json"
)

// BoardConfig holds the job board adapter settings.
type BoardConfig struct {
	BaseURL   string   `mapstructure:"base-url"`
	Roles     []string `mapstructure:"roles"`
	WorkModes []string `mapstructure:"work-modes"`
	Rubric    string   `mapstructure:"rubric"`
}

// Board fetches structured postings from the job board JSON API.
type Board struct {
	baseURL    string
	roles      []string
	workModes  []string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

type boardItem struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	URL      string `json:"url,omitempty"`
	ApplyURL string `json:"apply_url,omitempty"`
	// Requirement bullets as rendered on the posting page.
	Requirements []string `json:"requirements,omitempty"`
	Description  string   `json:"description,omitempty"`
}

type boardResponse struct {
	Items []*boardItem `json:"items"`
}

// NewBoard creates a job board adapter for the given base URL.
func NewBoard(cfg *BoardConfig, logger *zap.Logger) (*Board, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("board base url is required")
	}

	return &Board{
		baseURL:   base,
		roles:     cfg.Roles,
		workModes: cfg.WorkModes,
		logger:    logger,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: boardUserAgent,
	}, nil
}

func (b *Board) Name() string { return "board" }

// Fetch returns the current postings matching the configured role and
// work-mode filters.
func (b *Board) Fetch(ctx context.Context) ([]*Posting, error) {
	endpoint := b.baseURL + boardJobsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", b.UserAgent)
	req.Header.Set("Accept", boardContentType)

	q := url.Values{}
	for _, role := range b.roles {
		q.Add("role", role)
	}
	for _, mode := range b.workModes {
		q.Add("work_mode", mode)
	}
	req.URL.RawQuery = q.Encode()

	b.logger.Debug("fetching board postings", zap.String("url", req.URL.String()))

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("board request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("board returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var response boardResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode board response: %w", err)
	}

	postings := make([]*Posting, 0, len(response.Items))
	for _, item := range response.Items {
		p := item.toPosting(b.baseURL)
		if p.ID == "" {
			b.logger.Warn("skipping board posting without id or url", zap.String("title", item.Title))
			continue
		}
		postings = append(postings, p)
	}

	b.logger.Info("board postings fetched", zap.Int("count", len(postings)))

	return postings, nil
}

func (i *boardItem) toPosting(baseURL string) *Posting {
	link := strings.TrimSpace(i.URL)
	if link != "" && !strings.HasPrefix(link, "http") {
		link = baseURL + link
	}

	description := strings.TrimSpace(i.Description)
	if description == "" && len(i.Requirements) > 0 {
		parts := make([]string, 0, len(i.Requirements))
		for _, r := range i.Requirements {
			if r = strings.TrimSpace(r); r != "" {
				parts = append(parts, r)
			}
		}
		description = strings.Join(parts, "; ")
	}

	// The canonical posting URL is the preferred dedup key since it stays
	// stable across repeated fetches.
	id := link
	if id == "" {
		id = strings.TrimSpace(i.ID)
	}

	return &Posting{
		ID:          id,
		Title:       strings.TrimSpace(i.Title),
		Company:     strings.TrimSpace(i.Company),
		Description: description,
		Link:        link,
		ApplyLink:   strings.TrimSpace(i.ApplyURL),
	}
}
