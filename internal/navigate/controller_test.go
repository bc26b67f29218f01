package navigate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

type countingResolver struct {
	calls int
}

func (r *countingResolver) Resolve(page *crawler.Page) []crawler.ProductRecord {
	r.calls++
	rec := crawler.NewProductRecord(page.URL)
	rec.Bundle = crawler.BundleSingle
	return []crawler.ProductRecord{rec}
}

var queue = []string{
	"https://shop.test/products/a",
	"https://shop.test/products/b",
	"https://shop.test/products/c",
}

func seed(t *testing.T, kv store.KV, urls []string) *store.ProcessStore {
	t.Helper()
	ctx := context.Background()
	st := store.New(kv, "test", nil)
	require.NoError(t, st.SetNavigationQueue(ctx, urls))
	require.NoError(t, st.SetCursor(ctx, 0))
	require.NoError(t, st.SetExtractedCursor(ctx, -1))
	require.NoError(t, st.SetNavigationInProgress(ctx, true))
	return st
}

func page(t *testing.T, rawURL string) *crawler.Page {
	t.Helper()
	p, err := crawler.NewPage(rawURL, []byte("<html><body><h1 class=\"product__title\">Thing</h1></body></html>"))
	require.NoError(t, err)
	return p
}

func TestVisitExtractsOncePerCursor(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), queue)
	resolver := &countingResolver{}
	c := New(st, resolver, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	ctx := context.Background()

	for range 3 {
		action, err := c.Visit(ctx, page(t, queue[0]))
		require.NoError(t, err)
		assert.Equal(t, crawler.ActionExtractAndWait, action.Kind)
		assert.Equal(t, crawler.DefaultTiming().Dwell, action.Delay)
	}
	assert.Equal(t, 1, resolver.calls)

	records, err := st.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	extracted, err := st.ExtractedCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, extracted)
}

// brokenBatchKV rejects the first batched write.
type brokenBatchKV struct {
	*memory.KVStore
	failed bool
}

func (kv *brokenBatchKV) SetMany(ctx context.Context, values map[string][]byte) error {
	if !kv.failed {
		kv.failed = true
		return errors.New("write interrupted")
	}
	return kv.KVStore.SetMany(ctx, values)
}

func TestVisitRetryAfterInterruptedWriteExtractsOnce(t *testing.T) {
	t.Parallel()

	st := seed(t, &brokenBatchKV{KVStore: memory.NewKVStore()}, queue)
	resolver := &countingResolver{}
	c := New(st, resolver, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	ctx := context.Background()

	_, err := c.Visit(ctx, page(t, queue[0]))
	require.ErrorContains(t, err, "write interrupted")
	extracted, err := st.ExtractedCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, extracted)

	for range 2 {
		_, err = c.Visit(ctx, page(t, queue[0]))
		require.NoError(t, err)
	}
	records, err := st.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	extracted, err = st.ExtractedCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, extracted)
}

func TestVisitSkipsNonProductPages(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), queue)
	resolver := &countingResolver{}
	c := New(st, resolver, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)

	action, err := c.Visit(context.Background(), page(t, "https://shop.test/pages/age-gate"))
	require.NoError(t, err)
	assert.Equal(t, crawler.ActionExtractAndWait, action.Kind)
	assert.Zero(t, resolver.calls)
}

func TestAdvanceWalksQueueToCompletion(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), queue)
	c := New(st, &countingResolver{}, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	ctx := context.Background()

	action, err := c.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.Action{Kind: crawler.ActionAdvance, URL: queue[1]}, action)

	action, err = c.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.Action{Kind: crawler.ActionAdvance, URL: queue[2]}, action)

	action, err = c.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.ActionStop, action.Kind)
	assert.Equal(t, crawler.SignalNavigationComplete, action.Signal)

	active, err := st.NavigationInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	kept, err := st.NavigationQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue, kept)
	cursor, err := st.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cursor)
}

func TestNavigationResumesAtPersistedCursor(t *testing.T) {
	t.Parallel()

	kv := memory.NewKVStore()
	seed(t, kv, queue)
	ctx := context.Background()

	first := New(store.New(kv, "test", nil), &countingResolver{}, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	_, err := first.Visit(ctx, page(t, queue[0]))
	require.NoError(t, err)
	_, err = first.Advance(ctx)
	require.NoError(t, err)

	// A new page lifetime builds fresh controllers over the same backend.
	resolver := &countingResolver{}
	second := New(store.New(kv, "test", nil), resolver, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	_, err = second.Visit(ctx, page(t, queue[1]))
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)

	action, err := second.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue[2], action.URL)

	records, err := store.New(kv, "test", nil).Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, queue[0], records[0].ProductURL)
	assert.Equal(t, queue[1], records[1].ProductURL)
}

func TestAdvanceObservesCancellation(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), queue)
	c := New(st, &countingResolver{}, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	ctx := context.Background()
	require.NoError(t, st.SetNavigationInProgress(ctx, false))

	action, err := c.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.ActionStop, action.Kind)
	assert.Equal(t, crawler.ReasonCanceled, action.Reason)
	assert.Equal(t, crawler.SignalNone, action.Signal)

	cursor, err := st.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)
}

func TestAdvanceRejectsEmptyQueueEntry(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), []string{queue[0], "  ", queue[2]})
	c := New(st, &countingResolver{}, crawler.DefaultSiteProfile(), crawler.DefaultTiming(), nil)
	ctx := context.Background()

	action, err := c.Advance(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueIntegrity))
	assert.Equal(t, crawler.ActionStop, action.Kind)
	assert.Equal(t, crawler.ReasonInvalidQueueEntry, action.Reason)

	active, err := st.NavigationInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestVisitWithRealResolver(t *testing.T) {
	t.Parallel()

	st := seed(t, memory.NewKVStore(), queue)
	profile := crawler.DefaultSiteProfile()
	c := New(st, extract.NewResolver(profile, nil), profile, crawler.DefaultTiming(), nil)
	ctx := context.Background()

	_, err := c.Visit(ctx, page(t, queue[0]))
	require.NoError(t, err)
	records, err := st.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Thing", records[0].Name)
	assert.Equal(t, crawler.BundleSingle, records[0].Bundle)
}
