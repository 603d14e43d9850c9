package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/notify"
	"github.com/feedwatch/feedwatch/internal/state"
)

const marker = "__INITIAL_DATA__"

// fakeFetcher serves canned page content per source and fails on demand.
type fakeFetcher struct {
	pages map[feed.Source]feed.PageContent
	fails map[feed.Source]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, source feed.Source) (feed.PageContent, error) {
	if f.fails[source] {
		return feed.PageContent{}, errors.New("navigation timeout")
	}
	return f.pages[source], nil
}

type captureChannel struct {
	messages []string
}

func (c *captureChannel) Send(_ context.Context, message string) error {
	c.messages = append(c.messages, message)
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func pageWithPost(id, text, published string) feed.PageContent {
	return feed.PageContent{
		Global: map[string]any{
			"feed": []any{
				map[string]any{"story": map[string]any{
					"post_id":   id,
					"message":   text,
					"published": published,
				}},
			},
		},
	}
}

func newRunnerForTest(t *testing.T, fetcher feed.Fetcher, sources []feed.Source, st *feed.State, matchCh, noMatchCh *captureChannel) (*Runner, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	machine := notify.NewMachine(
		notify.Config{Keyword: "discord", MinNoMatchHours: 24, SnippetMaxChars: 200},
		st,
		matchCh,
		noMatchCh,
		nil,
		nil,
		fixedClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	)
	runner := NewRunner(
		Config{Sources: sources, Keyword: "discord", Marker: marker, PostLimit: 25},
		fetcher,
		machine,
		store,
		zap.NewNop(),
	)
	return runner, store
}

func TestRunMatchNotifiesAndPersists(t *testing.T) {
	src := feed.Source("https://example.com/feed")
	fetcher := &fakeFetcher{pages: map[feed.Source]feed.PageContent{
		src: pageWithPost("p1", "come join our Discord server", "1 hour ago"),
	}}
	st := feed.NewState()
	matchCh := &captureChannel{}
	runner, store := newRunnerForTest(t, fetcher, []feed.Source{src}, st, matchCh, &captureChannel{})

	require.NoError(t, runner.Run(context.Background(), st))
	require.Len(t, matchCh.messages, 1)
	require.Equal(t, "p1", st.LastNotified[string(src)])
	require.Equal(t, 1, store.Saves())
}

func TestRunFailingSourceDoesNotBlockOthers(t *testing.T) {
	bad := feed.Source("https://down.example.com/feed")
	good := feed.Source("https://up.example.com/feed")
	fetcher := &fakeFetcher{
		pages: map[feed.Source]feed.PageContent{
			good: pageWithPost("p9", "discord invite inside", "now"),
		},
		fails: map[feed.Source]bool{bad: true},
	}
	st := feed.NewState()
	matchCh := &captureChannel{}
	runner, _ := newRunnerForTest(t, fetcher, []feed.Source{bad, good}, st, matchCh, &captureChannel{})

	require.NoError(t, runner.Run(context.Background(), st))
	require.Len(t, matchCh.messages, 1)
	require.Equal(t, "p9", st.LastNotified[string(good)])
	require.NotContains(t, st.LastNotified, string(bad))
}

func TestRunDerivesIDWhenAbsent(t *testing.T) {
	src := feed.Source("https://example.com/feed")
	fetcher := &fakeFetcher{pages: map[feed.Source]feed.PageContent{
		src: pageWithPost("", "discord things", "2 hours ago"),
	}}
	st := feed.NewState()
	matchCh := &captureChannel{}
	runner, _ := newRunnerForTest(t, fetcher, []feed.Source{src}, st, matchCh, &captureChannel{})

	require.NoError(t, runner.Run(context.Background(), st))
	require.Len(t, matchCh.messages, 1)
	derived := st.LastNotified[string(src)]
	require.NotEmpty(t, derived)

	// A second run over identical content must dedupe on the derived id.
	matchCh.messages = nil
	runner2, _ := newRunnerForTest(t, fetcher, []feed.Source{src}, st, matchCh, &captureChannel{})
	require.NoError(t, runner2.Run(context.Background(), st))
	require.Empty(t, matchCh.messages)
	require.Equal(t, derived, st.LastNotified[string(src)])
}

func TestRunBlobMissTreatedAsNoPosts(t *testing.T) {
	src := feed.Source("https://example.com/feed")
	fetcher := &fakeFetcher{pages: map[feed.Source]feed.PageContent{
		src: {Scripts: []string{"var unrelated = 1;"}},
	}}
	st := feed.NewState()
	noMatchCh := &captureChannel{}
	runner, _ := newRunnerForTest(t, fetcher, []feed.Source{src}, st, &captureChannel{}, noMatchCh)

	require.NoError(t, runner.Run(context.Background(), st))
	// Nothing matched and the quiet period (never notified) has elapsed,
	// so the aggregate notice goes out.
	require.Len(t, noMatchCh.messages, 1)
	require.NotZero(t, st.LastNoMatchNotified)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (*feed.State, error) { return feed.NewState(), nil }
func (failingStore) Save(context.Context, *feed.State) error {
	return errors.New("disk full")
}

func TestRunStatePersistenceFailureIsFatal(t *testing.T) {
	src := feed.Source("https://example.com/feed")
	fetcher := &fakeFetcher{pages: map[feed.Source]feed.PageContent{}}
	st := feed.NewState()
	machine := notify.NewMachine(
		notify.Config{Keyword: "discord", MinNoMatchHours: 24},
		st, &captureChannel{}, &captureChannel{}, nil, nil,
		fixedClock{now: time.Now()}, zap.NewNop(),
	)
	runner := NewRunner(
		Config{Sources: []feed.Source{src}, Keyword: "discord", Marker: marker, PostLimit: 25},
		fetcher,
		machine,
		failingStore{},
		zap.NewNop(),
	)

	err := runner.Run(context.Background(), st)
	require.Error(t, err)
	require.Contains(t, err.Error(), "persist state")
}
