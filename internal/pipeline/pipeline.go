// Package pipeline takes freshly fetched postings through deduplication,
// evaluation, the notification threshold and persistence, one posting at a
// time.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/notify"
	"jobscout/internal/source"
	"jobscout/internal/store"
)

var sleep = time.Sleep

// Store is the slice of the durable store used by the pipeline.
type Store interface {
	Exists(ctx context.Context, id string) bool
	Upsert(ctx context.Context, record *store.JobRecord) error
}

// Evaluator scores one posting against the candidate profile.
type Evaluator interface {
	Evaluate(ctx context.Context, posting *source.Posting, resume string, profile *evaluation.Profile, rubric evaluation.Rubric) (*evaluation.EvalResult, error)
}

// Config holds the run-level pipeline settings.
type Config struct {
	// MinScore is the minimum evaluation score that triggers a notification.
	MinScore float64
	// Pacing is the blocking wait applied after each processed posting to
	// respect external rate limits.
	Pacing time.Duration
	// DryRun evaluates and persists but never notifies.
	DryRun bool
	// Force re-evaluates postings that are already in the store.
	Force bool
}

// Deps aggregates the collaborators injected into the pipeline.
type Deps struct {
	Store     Store
	Evaluator Evaluator
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Resume    string
	Profile   *evaluation.Profile
}

// Input pairs a source with the rubric its postings are evaluated under.
type Input struct {
	Source source.Source
	Rubric evaluation.Rubric
}

// Summary counts the outcomes of one run.
type Summary struct {
	Fetched   int
	Seen      int
	Evaluated int
	Notified  int
	Saved     int
	Failed    int
}

// Pipeline is the per-run orchestrator.
type Pipeline struct {
	cfg  *Config
	deps *Deps
}

// New creates a pipeline with the given settings and collaborators.
func New(cfg *Config, deps *Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps}
}

// Run processes every posting from every input in encounter order. A failure
// on one posting is contained to that posting; Run only returns an error
// when the context is cancelled.
func (p *Pipeline) Run(ctx context.Context, inputs []Input) (*Summary, error) {
	summary := &Summary{}

	for _, input := range inputs {
		log := p.deps.Logger.With(zap.String("source", input.Source.Name()))

		postings, err := input.Source.Fetch(ctx)
		if err != nil {
			log.Error("fetching postings failed", zap.Error(err))
			continue
		}

		if len(postings) == 0 {
			log.Info("no postings found")
			continue
		}

		log.Info("processing postings", zap.Int("count", len(postings)))

		for _, posting := range postings {
			summary.Fetched++

			if err := p.process(ctx, log, input.Rubric, input.Source.Name(), posting, summary); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

// process runs the state machine for one posting:
// Fetched -> Deduped(seen|new) -> Evaluated -> Thresholded -> Persisted.
func (p *Pipeline) process(ctx context.Context, log *zap.Logger, rubric evaluation.Rubric, sourceName string, posting *source.Posting, summary *Summary) error {
	if posting.ID == "" {
		log.Warn("skipping posting without identifier", zap.String("title", posting.Title))
		return nil
	}

	log = log.With(zap.String("posting_id", posting.ID))

	if !p.cfg.Force && p.deps.Store.Exists(ctx, posting.ID) {
		summary.Seen++
		log.Debug("posting already processed")
		return nil
	}

	log.Info("evaluating new posting")

	result, err := p.deps.Evaluator.Evaluate(ctx, posting, p.deps.Resume, p.deps.Profile, rubric)
	if err != nil {
		// Not persisted: the posting stays unseen and is retried next run.
		summary.Failed++
		log.Warn("evaluation failed", zap.Error(err))
		return p.pace(ctx)
	}

	summary.Evaluated++

	notified := false
	if result.Score >= p.cfg.MinScore {
		if p.cfg.DryRun {
			log.Info("notification suppressed",
				zap.String("reason", "dry-run"),
				zap.Float64("score", result.Score),
			)
		} else {
			notified = p.deps.Notifier.Notify(ctx, posting, result)
			if !notified {
				log.Warn("notification failed, saving posting anyway")
			}
		}
	} else {
		log.Info("score below notification threshold",
			zap.Float64("score", result.Score),
			zap.Float64("threshold", p.cfg.MinScore),
		)
	}

	record, err := buildRecord(sourceName, posting, result, notified)
	if err != nil {
		summary.Failed++
		log.Error("building job record", zap.Error(err))
		return p.pace(ctx)
	}

	if err := p.deps.Store.Upsert(ctx, record); err != nil {
		summary.Failed++
		log.Error("persisting posting failed", zap.Error(err))
		return p.pace(ctx)
	}

	summary.Saved++
	if notified {
		summary.Notified++
	}

	return p.pace(ctx)
}

// buildRecord merges the posting with its evaluation into one durable row.
// Title and company extracted by the model backfill free-text posts.
func buildRecord(sourceName string, posting *source.Posting, result *evaluation.EvalResult, notified bool) (*store.JobRecord, error) {
	serialized, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	title := posting.Title
	if title == "" {
		title = result.Title
	}

	company := posting.Company
	if company == "" {
		company = result.Company
	}

	return &store.JobRecord{
		ID:          posting.ID,
		Title:       title,
		Link:        posting.Link,
		ApplyLink:   posting.ApplyLink,
		Company:     company,
		Description: posting.Content(),
		Evaluation:  string(serialized),
		Score:       result.Score,
		Decision:    result.Decision,
		VisitedAt:   time.Now().UTC(),
		Notified:    notified,
		Source:      sourceName,
	}, nil
}

// pace blocks for the configured inter-item delay, bailing out early when
// the context is cancelled.
func (p *Pipeline) pace(ctx context.Context) error {
	if p.cfg.Pacing <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(p.cfg.Pacing)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
