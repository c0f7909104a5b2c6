// Package source contains the posting model and the adapters that produce
// postings from external origins (job board API, exported social feed).
package source

import (
	"context"
	"strings"
)

// Posting is a single scraped job or opportunity record before evaluation.
type Posting struct {
	// ID is the stable deduplication key: the canonical posting URL or the
	// platform-assigned id. Two postings with an equal ID are the same entity.
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
	// Text holds the raw post body for free-text sources that carry no
	// structured title/company/description.
	Text      string `json:"text,omitempty"`
	Link      string `json:"link,omitempty"`
	ApplyLink string `json:"apply_link,omitempty"`
}

// Content returns the textual body of the posting regardless of its origin.
func (p *Posting) Content() string {
	if strings.TrimSpace(p.Description) != "" {
		return p.Description
	}
	return p.Text
}

// Source yields a finite sequence of postings for one run. Implementations
// re-fetch from scratch on every call and may return an empty slice.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*Posting, error)
}
