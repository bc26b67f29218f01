package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
)

func TestKVStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	kv, err := local.NewKVStore(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "catalog.navigation.cursor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "catalog.navigation.cursor", []byte("3")))
	got, ok, err := kv.Get(ctx, "catalog.navigation.cursor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", string(got))

	// A second store over the same directory sees the persisted value.
	reopened, err := local.NewKVStore(local.Config{BaseDir: dir})
	require.NoError(t, err)
	got, ok, err = reopened.Get(ctx, "catalog.navigation.cursor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files must not be left behind")
	}
	assert.FileExists(t, filepath.Join(dir, "catalog.navigation.cursor.json"))
}

func TestKVStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	kv, err := local.NewKVStore(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, kv.Set(context.Background(), key, []byte("1")), key)
		_, _, err := kv.Get(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestKVStoreSetManyWritesEveryKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	kv, err := local.NewKVStore(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, kv.SetMany(ctx, map[string][]byte{
		"catalog.crawl.links":   []byte(`["a","b"]`),
		"catalog.crawl.visited": []byte(`["p1"]`),
	}))

	got, ok, err := kv.Get(ctx, "catalog.crawl.links")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `["a","b"]`, string(got))
	assert.NoFileExists(t, filepath.Join(dir, ".batch.json"))

	assert.Error(t, kv.SetMany(ctx, map[string][]byte{"../escape": []byte("1")}))
}

func TestNewKVStoreReplaysInterruptedBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	// A batch journaled before a crash: one value landed, one did not.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.navigation.extracted_cursor.json"), []byte("2"), 0o600))
	journal := `{"catalog.navigation.extracted_cursor":"Mg==","catalog.results.records":"W10="}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".batch.json"), []byte(journal), 0o600))

	kv, err := local.NewKVStore(local.Config{BaseDir: dir})
	require.NoError(t, err)

	got, ok, err := kv.Get(ctx, "catalog.results.records")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(got))
	assert.NoFileExists(t, filepath.Join(dir, ".batch.json"))
}

func TestNewKVStoreRejectsCorruptJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".batch.json"), []byte("{"), 0o600))

	_, err := local.NewKVStore(local.Config{BaseDir: dir})
	assert.ErrorContains(t, err, "decode batch journal")
}
