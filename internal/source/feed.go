package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// FeedConfig holds the social feed adapter settings.
type FeedConfig struct {
	// File points to a JSON export of feed posts, one object per post with
	// "link" and "text" keys.
	File   string `mapstructure:"file"`
	Rubric string `mapstructure:"rubric"`
}

// Feed reads free-text posts exported from a social network search feed.
// Exporting is done outside this process; the adapter only consumes the dump.
type Feed struct {
	path   string
	logger *zap.Logger
}

type feedPost struct {
	Link string `json:"link"`
	Text string `json:"text"`
}

// NewFeed creates a feed adapter reading the given export file.
func NewFeed(cfg *FeedConfig, logger *zap.Logger) (*Feed, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, errors.New("feed file is required")
	}

	return &Feed{path: path, logger: logger}, nil
}

func (f *Feed) Name() string { return "feed" }

// Fetch parses the export file and returns one posting per post. Posts
// without a link are skipped since they carry no stable dedup key.
func (f *Feed) Fetch(_ context.Context) ([]*Posting, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open feed export: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return []*Posting{}, nil
	}

	var posts []*feedPost
	if err := json.NewDecoder(file).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode feed export: %w", err)
	}

	postings := make([]*Posting, 0, len(posts))
	for _, post := range posts {
		link := strings.TrimSpace(post.Link)
		if link == "" {
			f.logger.Warn("skipping feed post without link")
			continue
		}

		postings = append(postings, &Posting{
			ID:   link,
			Link: link,
			Text: strings.TrimSpace(post.Text),
		})
	}

	f.logger.Info("feed posts loaded", zap.String("path", f.path), zap.Int("count", len(postings)))

	return postings, nil
}
