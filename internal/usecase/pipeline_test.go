package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/classifier"
	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/infrastructure/llm"
	"RedditMonitor/internal/ledger"
	"RedditMonitor/internal/metrics"
	"RedditMonitor/internal/prefilter"
)

type staticSource struct {
	items []domain.Item
	calls int
}

func (s *staticSource) FetchAll(context.Context) []domain.Item {
	s.calls++
	return s.items
}

type reply struct {
	text string
	err  error
}

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

func (s *scriptedCompleter) Complete(context.Context, string, domain.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.replies) == 0 {
		return "", errors.New("unexpected call")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

type recordingNotifier struct {
	items     []domain.Item
	summaries []domain.RunSummary
	failFor   map[string]bool
}

func (n *recordingNotifier) NotifyItem(_ context.Context, item domain.Item) error {
	if n.failFor[item.ID] {
		return errors.New("webhook unreachable")
	}
	n.items = append(n.items, item)
	return nil
}

func (n *recordingNotifier) NotifySummary(_ context.Context, summary domain.RunSummary) error {
	n.summaries = append(n.summaries, summary)
	return nil
}

// failingClassifier fails the batches whose position is listed.
type failingClassifier struct {
	calls   int
	failing map[int]bool
	batches [][]domain.Item
}

func (f *failingClassifier) ClassifyBatch(_ context.Context, items []domain.Item) ([]domain.ClassificationResult, error) {
	call := f.calls
	f.calls++
	f.batches = append(f.batches, items)
	if f.failing[call] {
		return nil, errors.New("provider unavailable")
	}
	return []domain.ClassificationResult{{Index: 0, IsRelevant: true, Reason: "first"}}, nil
}

func posts(subreddit string, ids ...string) []domain.Item {
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Item{
			ID:        id,
			Type:      domain.TypePost,
			Title:     "post " + id,
			Content:   "looking for help",
			Subreddit: subreddit,
			Link:      fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/", subreddit, id),
		})
	}
	return out
}

type sleeps struct {
	waits []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestPipeline(deps PipelineDeps, opts PipelineOptions) (*Pipeline, *sleeps) {
	p := NewPipeline(deps, opts)
	s := &sleeps{}
	p.sleep = s.sleep
	p.newRunID = func() string { return "run-1" }
	return p, s
}

func TestRunTwelvePostScenario(t *testing.T) {
	t.Parallel()

	items := append(posts("gamedev", "a1", "a2", "a3", "a4", "a5", "a6"), posts("godot", "b1", "b2", "b3", "b4", "b5", "b6")...)
	items[2].Title = "[HIRING] Unity programmer"
	items[7].Content = "this is a job posting"

	completer := &scriptedCompleter{replies: []reply{
		{text: `[{"index":1,"is_relevant":true,"reason":"stuck","reply_draft":"hey"},{"index":3,"is_relevant":true},{"index":0,"is_relevant":false}]`},
		{err: llm.ErrRateLimited},
		{err: llm.ErrRateLimited},
	}}

	led := ledger.NewMemoryLedger(5000)
	notifier := &recordingNotifier{}
	p, sl := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: items},
		Filter:     prefilter.New([]string{"[hiring]", "job posting"}, nil, nil),
		Classifier: classifier.New(completer, config.ProductConfig{Name: "wefun.ai"}, classifier.Options{}, nil),
		Notifier:   notifier,
		Ledger:     led,
		Metrics:    metrics.New(),
	}, PipelineOptions{BatchSize: 5, BatchDelay: 4 * time.Second})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, led.Len())
	for _, item := range items {
		assert.Contains(t, led.IDs(), item.ID)
	}

	require.Len(t, notifier.items, 2)
	assert.Equal(t, "a2", notifier.items[0].ID)
	assert.Equal(t, "a5", notifier.items[1].ID)
	require.NotNil(t, notifier.items[0].Analysis)
	assert.Equal(t, "hey", notifier.items[0].Analysis.ReplyDraft)

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, 2, notifier.summaries[0].Relevant)

	assert.Equal(t, 3, completer.calls, "second batch retried once after throttling")
	assert.Equal(t, []time.Duration{4 * time.Second}, sl.waits)
	assert.Equal(t, domain.RunSummary{
		RunID:          "run-1",
		Fetched:        12,
		Filtered:       10,
		Relevant:       2,
		Sent:           2,
		Batches:        2,
		FailedBatches:  1,
		FetchedByType:  domain.TypeCounts{domain.TypePost: 12},
		RelevantByType: domain.TypeCounts{domain.TypePost: 2},
	}, summary)
	assert.GreaterOrEqual(t, led.Saves(), 2, "checkpoint after every batch")
}

func TestRunMalformedResponse(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{replies: []reply{{text: "I think posts 1 and 2 look promising!"}}}
	led := ledger.NewMemoryLedger(100)
	notifier := &recordingNotifier{}
	p, _ := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: posts("gamedev", "a", "b", "c")},
		Filter:     prefilter.New(nil, nil, nil),
		Classifier: classifier.New(completer, config.ProductConfig{Name: "wefun.ai"}, classifier.Options{}, nil),
		Notifier:   notifier,
		Ledger:     led,
	}, PipelineOptions{BatchSize: 10})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Relevant)
	assert.Zero(t, summary.FailedBatches)
	assert.Empty(t, notifier.items)
	assert.Empty(t, notifier.summaries)
	assert.Equal(t, []string{"a", "b", "c"}, led.IDs())
}

func TestRunPartialFailureCheckpointing(t *testing.T) {
	t.Parallel()

	cls := &failingClassifier{failing: map[int]bool{0: true}}
	led := ledger.NewMemoryLedger(100)
	notifier := &recordingNotifier{}
	p, _ := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: posts("gamedev", "a", "b", "c", "d")},
		Classifier: cls,
		Notifier:   notifier,
		Ledger:     led,
	}, PipelineOptions{BatchSize: 2})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, cls.calls, "batch after the failed one still runs")
	assert.Equal(t, []string{"a", "b", "c", "d"}, led.IDs())
	assert.Equal(t, 2, led.Saves())
	assert.Equal(t, 1, summary.FailedBatches)
	require.Len(t, notifier.items, 1)
	assert.Equal(t, "c", notifier.items[0].ID)
}

func TestRunRetryFailedBatchesLeavesThemUnrecorded(t *testing.T) {
	t.Parallel()

	cls := &failingClassifier{failing: map[int]bool{1: true}}
	led := ledger.NewMemoryLedger(100)
	items := posts("gamedev", "a", "b", "c", "d", "e")
	items[4].Title = "[paid] gig"
	p, _ := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: items},
		Filter:     prefilter.New([]string{"[paid]"}, nil, nil),
		Classifier: cls,
		Notifier:   &recordingNotifier{},
		Ledger:     led,
	}, PipelineOptions{BatchSize: 2, RetryFailedBatches: true})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e", "a", "b"}, led.IDs())
}

func TestRunNotificationFailuresAreCounted(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{failFor: map[string]bool{"a": true}}
	p, _ := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: posts("gamedev", "a", "b")},
		Classifier: &failingClassifier{},
		Notifier:   notifier,
		Ledger:     ledger.NewMemoryLedger(100),
	}, PipelineOptions{BatchSize: 1})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Relevant)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, 1, notifier.summaries[0].Sent)
}

func TestRunPrioritizesRelevanceKeywords(t *testing.T) {
	t.Parallel()

	items := posts("gamedev", "a", "b", "c")
	items[2].Title = "Need a prototype fast"
	cls := &failingClassifier{}
	p, _ := newTestPipeline(PipelineDeps{
		Source:     &staticSource{items: items},
		Filter:     prefilter.New(nil, []string{"prototype"}, nil),
		Classifier: cls,
		Notifier:   &recordingNotifier{},
		Ledger:     ledger.NewMemoryLedger(100),
	}, PipelineOptions{BatchSize: 3})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, cls.batches, 1)
	assert.Equal(t, []string{"c", "a", "b"}, []string{cls.batches[0][0].ID, cls.batches[0][1].ID, cls.batches[0][2].ID})
}

func TestRunEarlyExits(t *testing.T) {
	t.Parallel()

	t.Run("empty fetch", func(t *testing.T) {
		t.Parallel()
		cls := &failingClassifier{}
		led := ledger.NewMemoryLedger(10)
		p, _ := newTestPipeline(PipelineDeps{
			Source:     &staticSource{},
			Classifier: cls,
			Notifier:   &recordingNotifier{},
			Ledger:     led,
		}, PipelineOptions{})

		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Fetched)
		assert.Zero(t, cls.calls)
		assert.Zero(t, led.Saves())
	})

	t.Run("everything excluded", func(t *testing.T) {
		t.Parallel()
		items := posts("gamedev", "a", "b")
		for i := range items {
			items[i].Content = "NSFW"
		}
		cls := &failingClassifier{}
		led := ledger.NewMemoryLedger(10)
		notifier := &recordingNotifier{}
		p, _ := newTestPipeline(PipelineDeps{
			Source:     &staticSource{items: items},
			Filter:     prefilter.New([]string{"nsfw"}, nil, nil),
			Classifier: cls,
			Notifier:   notifier,
			Ledger:     led,
		}, PipelineOptions{})

		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Fetched)
		assert.Zero(t, summary.Filtered)
		assert.Zero(t, cls.calls)
		assert.Empty(t, notifier.summaries)
		assert.Equal(t, []string{"a", "b"}, led.IDs())
		assert.Equal(t, 1, led.Saves())
	})
}

func TestRunStopsBetweenBatchesWhenCancelled(t *testing.T) {
	t.Parallel()

	cls := &failingClassifier{}
	led := ledger.NewMemoryLedger(10)
	p := NewPipeline(PipelineDeps{
		Source:     &staticSource{items: posts("gamedev", "a", "b", "c")},
		Classifier: cls,
		Notifier:   &recordingNotifier{},
		Ledger:     led,
	}, PipelineOptions{BatchSize: 1, BatchDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	summary, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cls.calls)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, []string{"a"}, led.IDs(), "completed batch was checkpointed")
}
