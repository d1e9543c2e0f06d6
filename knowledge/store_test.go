package knowledge_test

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/knowledge"
)

func storeChunks() []knowledge.Chunk {
	return []knowledge.Chunk{
		{ID: "x", Content: "east", Embedding: []float32{1, 0}, Metadata: map[string]any{"source": "compass.txt"}},
		{ID: "y", Content: "north", Embedding: []float32{0, 1}},
		{ID: "z", Content: "north-east", Embedding: []float32{0.7, 0.7}},
	}
}

func exerciseStore(t *testing.T, store knowledge.Store) {
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, storeChunks()))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := store.Search(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].ID)
	assert.Equal(t, "z", hits[1].ID)
	assert.Equal(t, "compass.txt", hits[0].Source())

	all, err := store.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "y", all[0].ID)

	_, err = store.Search(ctx, []float32{0, 1}, 0)
	assert.Error(t, err)

	sample, err := store.Sample(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)

	assert.Error(t, store.Add(ctx, []knowledge.Chunk{{ID: "no-vector", Content: "x"}}))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, knowledge.NewMemoryStore())
}

func TestBadgerStore_InMemory(t *testing.T) {
	store, err := knowledge.OpenBadgerStore("", "")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, knowledge.DefaultCollection, store.Collection())
	exerciseStore(t, store)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := knowledge.OpenBadgerStore(dir, "manuals")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, storeChunks()))
	require.NoError(t, store.Close())

	store, err = knowledge.OpenBadgerStore(dir, "manuals")
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := store.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "north", hits[0].Content)
	assert.Equal(t, "compass.txt", func() string {
		s, _ := store.Sample(ctx, 1)
		return s[0].Source()
	}())
}

func TestBadgerStore_CollectionsAreIsolated(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	a := knowledge.NewBadgerStore(db, "a")
	b := knowledge.NewBadgerStore(db, "b")
	require.NoError(t, a.Add(ctx, storeChunks()))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
