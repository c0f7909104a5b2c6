package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/source"
	"jobscout/internal/store"
)

type fakeSource struct {
	name     string
	postings []*source.Posting
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context) ([]*source.Posting, error) {
	return f.postings, f.err
}

type fakeStore struct {
	seen      map[string]bool
	records   []*store.JobRecord
	upsertErr error
}

func newFakeStore(seen ...string) *fakeStore {
	s := &fakeStore{seen: make(map[string]bool)}
	for _, id := range seen {
		s.seen[id] = true
	}
	return s
}

func (f *fakeStore) Exists(_ context.Context, id string) bool { return f.seen[id] }

func (f *fakeStore) Upsert(_ context.Context, record *store.JobRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.seen[record.ID] = true
	f.records = append(f.records, record)
	return nil
}

type fakeEvaluator struct {
	results map[string]*evaluation.EvalResult
	errs    map[string]error
	calls   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, posting *source.Posting, _ string, _ *evaluation.Profile, _ evaluation.Rubric) (*evaluation.EvalResult, error) {
	f.calls = append(f.calls, posting.ID)
	if err := f.errs[posting.ID]; err != nil {
		return nil, err
	}
	if result := f.results[posting.ID]; result != nil {
		return result, nil
	}
	return &evaluation.EvalResult{Decision: evaluation.DecisionSkip, Confidence: 0.5}, nil
}

type fakeNotifier struct {
	success  bool
	notified []string
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, posting *source.Posting, _ *evaluation.EvalResult) bool {
	f.notified = append(f.notified, posting.ID)
	return f.success
}

func posting(id string) *source.Posting {
	return &source.Posting{ID: id, Title: "Job " + id, Link: id}
}

func result(score float64, decision string) *evaluation.EvalResult {
	return &evaluation.EvalResult{Score: score, Decision: decision, Confidence: 0.8}
}

func newTestPipeline(cfg *Config, st Store, ev Evaluator, n *fakeNotifier) *Pipeline {
	return New(cfg, &Deps{
		Store:     st,
		Evaluator: ev,
		Notifier:  n,
		Logger:    zap.NewNop(),
		Resume:    "resume",
		Profile:   &evaluation.Profile{},
	})
}

func TestRunSkipsSeenPostings(t *testing.T) {
	st := newFakeStore("a")
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"b": result(50, "skip")}}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("a"), posting("b")}},
		Rubric: evaluation.RubricStandard,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Seen != 1 || summary.Evaluated != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(ev.calls) != 1 || ev.calls[0] != "b" {
		t.Fatalf("expected only posting b to be evaluated, got %v", ev.calls)
	}
}

func TestRunThresholdGate(t *testing.T) {
	st := newFakeStore()
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{
		"below": result(69.9, "apply"),
		"at":    result(70, "apply"),
	}}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("below"), posting("at")}},
		Rubric: evaluation.RubricStandard,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(n.notified) != 1 || n.notified[0] != "at" {
		t.Fatalf("expected only the at-threshold posting to notify, got %v", n.notified)
	}

	// Both postings are persisted regardless of the gate.
	if summary.Saved != 2 || summary.Notified != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunPerItemIsolation(t *testing.T) {
	st := newFakeStore()
	ev := &fakeEvaluator{
		results: map[string]*evaluation.EvalResult{
			"first": result(80, "apply"),
			"third": result(75, "apply"),
		},
		errs: map[string]error{
			"second": &evaluation.MalformedResponseError{Snippet: "garbage"},
		},
	}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("first"), posting("second"), posting("third")}},
		Rubric: evaluation.RubricStandard,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Failed != 1 || summary.Saved != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if st.seen["second"] {
		t.Fatalf("failed posting must stay unseen so it is retried next run")
	}

	if !st.seen["first"] || !st.seen["third"] {
		t.Fatalf("expected first and third postings to be persisted")
	}
}

func TestRunPersistsWhenNotificationFails(t *testing.T) {
	st := newFakeStore()
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"a": result(90, "apply")}}
	n := &fakeNotifier{success: false}

	p := newTestPipeline(&Config{MinScore: 70}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("a")}},
		Rubric: evaluation.RubricStandard,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Saved != 1 || summary.Notified != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(st.records) != 1 || st.records[0].Notified {
		t.Fatalf("expected record saved with notified=false, got %+v", st.records)
	}
}

func TestRunDryRunSuppressesNotifications(t *testing.T) {
	st := newFakeStore()
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"a": result(90, "apply")}}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70, DryRun: true}, st, ev, n)

	if _, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("a")}},
		Rubric: evaluation.RubricStandard,
	}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(n.notified) != 0 {
		t.Fatalf("expected no notifications in dry-run, got %v", n.notified)
	}

	if len(st.records) != 1 {
		t.Fatalf("expected posting still persisted in dry-run")
	}
}

func TestRunForceReevaluatesSeenPostings(t *testing.T) {
	st := newFakeStore("a")
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"a": result(50, "skip")}}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70, Force: true}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("a")}},
		Rubric: evaluation.RubricStandard,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Seen != 0 || summary.Evaluated != 1 {
		t.Fatalf("expected forced re-evaluation, got %+v", summary)
	}
}

func TestRunToleratesEmptyAndFailingSources(t *testing.T) {
	st := newFakeStore()
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"a": result(90, "apply")}}
	n := &fakeNotifier{success: true}

	p := newTestPipeline(&Config{MinScore: 70}, st, ev, n)

	summary, err := p.Run(context.Background(), []Input{
		{Source: &fakeSource{name: "empty"}, Rubric: evaluation.RubricStandard},
		{Source: &fakeSource{name: "broken", err: errors.New("network down")}, Rubric: evaluation.RubricStrict},
		{Source: &fakeSource{name: "feed", postings: []*source.Posting{posting("a")}}, Rubric: evaluation.RubricStrict},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Saved != 1 {
		t.Fatalf("expected the healthy source to still be processed, got %+v", summary)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) { select {} }
	defer func() { sleep = originalSleep }()

	st := newFakeStore()
	ev := &fakeEvaluator{results: map[string]*evaluation.EvalResult{"a": result(90, "apply")}}
	n := &fakeNotifier{success: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(&Config{MinScore: 70, Pacing: time.Hour}, st, ev, n)

	if _, err := p.Run(ctx, []Input{{
		Source: &fakeSource{name: "board", postings: []*source.Posting{posting("a"), posting("b")}},
		Rubric: evaluation.RubricStandard,
	}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildRecordBackfillsExtractedFields(t *testing.T) {
	p := &source.Posting{ID: "urn:1", Text: "hiring frontend", Link: "https://example.com/feed/1"}
	r := &evaluation.EvalResult{Score: 75, Decision: "apply", Title: "Frontend Dev", Company: "Acme"}

	record, err := buildRecord("feed", p, r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Title != "Frontend Dev" || record.Company != "Acme" {
		t.Fatalf("expected extracted fields to backfill the record, got %+v", record)
	}

	if record.Source != "feed" || !record.Notified {
		t.Fatalf("unexpected record metadata: %+v", record)
	}

	if record.Description != "hiring frontend" {
		t.Fatalf("expected post text as description, got %q", record.Description)
	}
}
