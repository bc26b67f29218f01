package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/navigate"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

type stubStepper struct {
	action crawler.Action
	seen   crawler.ProcessState
	st     *store.ProcessStore
}

func (s *stubStepper) Step(ctx context.Context, _ *crawler.Page) (crawler.Action, error) {
	state, err := s.st.State(ctx)
	s.seen = state
	return s.action, err
}

type staticIDs struct {
	id  string
	err error
}

func (s staticIDs) NewID() (string, error) { return s.id, s.err }

func newCommands(t *testing.T) (*Commands, *store.ProcessStore, *stubStepper) {
	t.Helper()
	st := store.New(memory.NewKVStore(), "test", nil)
	stepper := &stubStepper{action: crawler.Action{Kind: crawler.ActionClick, Selector: "a.next"}, st: st}
	return New(st, stepper, staticIDs{id: "run-7"}, nil), st, stepper
}

func listing(t *testing.T) *crawler.Page {
	t.Helper()
	p, err := crawler.NewPage("https://shop.test/collections/all", []byte("<html></html>"))
	require.NoError(t, err)
	return p
}

func TestStartCrawlResetsState(t *testing.T) {
	t.Parallel()

	cmds, st, stepper := newCommands(t)
	ctx := context.Background()
	require.NoError(t, st.SetNavigationInProgress(ctx, true))
	require.NoError(t, st.SetCollectedLinks(ctx, []string{"old"}))
	require.NoError(t, st.SetVisitedPages(ctx, []string{"old"}))
	_, err := st.AppendRecords(ctx, crawler.NewProductRecord("old"))
	require.NoError(t, err)

	action, runID, err := cmds.StartCrawl(ctx, listing(t))
	require.NoError(t, err)
	assert.Equal(t, "run-7", runID)
	assert.Equal(t, crawler.ActionClick, action.Kind)
	assert.Equal(t, crawler.ProcessState{CrawlInProgress: true}, stepper.seen)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-7", status.RunID)
	assert.Zero(t, status.CollectedLinks)
	assert.Zero(t, status.VisitedPages)
	assert.Zero(t, status.Records)
	assert.False(t, status.NavigationInProgress)
}

func TestStartCrawlIDFailure(t *testing.T) {
	t.Parallel()

	st := store.New(memory.NewKVStore(), "test", nil)
	cmds := New(st, &stubStepper{st: st}, staticIDs{err: errors.New("entropy")}, nil)
	_, _, err := cmds.StartCrawl(context.Background(), listing(t))
	assert.Error(t, err)

	flag, err := st.CrawlInProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, flag)
}

func TestStartNavigationEmptyQueue(t *testing.T) {
	t.Parallel()

	cmds, st, _ := newCommands(t)
	_, err := cmds.StartNavigation(context.Background())
	assert.ErrorIs(t, err, ErrEmptyQueue)

	state, err := st.State(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Idle())
}

func TestStartNavigationSnapshotsLinks(t *testing.T) {
	t.Parallel()

	cmds, st, _ := newCommands(t)
	ctx := context.Background()
	links := []string{"https://shop.test/products/a", "https://shop.test/products/b"}
	require.NoError(t, st.SetCrawlInProgress(ctx, true))
	require.NoError(t, st.SetCollectedLinks(ctx, links))
	require.NoError(t, st.SetCursor(ctx, 5))
	_, err := st.AppendRecords(ctx, crawler.NewProductRecord("old"))
	require.NoError(t, err)

	action, err := cmds.StartNavigation(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.Action{Kind: crawler.ActionAdvance, URL: links[0]}, action)

	state, err := st.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.ProcessState{NavigationInProgress: true}, state)

	queue, err := st.NavigationQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, links, queue)
	cursor, err := st.Cursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, cursor)
	extracted, err := st.ExtractedCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, extracted)
	records, err := st.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Later crawls do not disturb the snapshot.
	require.NoError(t, st.SetCollectedLinks(ctx, []string{"other"}))
	queue, err = st.NavigationQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, links, queue)
}

func TestStartNavigationInvalidFirstEntry(t *testing.T) {
	t.Parallel()

	cmds, st, _ := newCommands(t)
	ctx := context.Background()
	require.NoError(t, st.SetCollectedLinks(ctx, []string{"", "https://shop.test/products/b"}))

	_, err := cmds.StartNavigation(ctx)
	assert.ErrorIs(t, err, navigate.ErrQueueIntegrity)
	active, err := st.NavigationInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStopClearsFlags(t *testing.T) {
	t.Parallel()

	cmds, st, _ := newCommands(t)
	ctx := context.Background()
	require.NoError(t, st.SetNavigationInProgress(ctx, true))
	require.NoError(t, cmds.Stop(ctx))

	status, err := cmds.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.CrawlInProgress)
	assert.False(t, status.NavigationInProgress)
}
