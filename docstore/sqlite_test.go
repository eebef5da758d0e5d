package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamma-omg/docsearch/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func createDocument(t *testing.T, store *SQLiteStore, id, project string) Document {
	t.Helper()

	doc := Document{
		ID:       id,
		FileName: id + ".txt",
		Path:     "/docs/" + project + "/" + id + ".txt",
		Format:   "plain_text",
		Size:     42,
		Crc:      4000000000,
		Project:  project,
		Tags:     []string{"facts"},
	}
	require.NoError(t, store.SaveDocument(context.Background(), &doc))

	return doc
}

func makeChunks(docRef string, texts ...string) []Chunk {
	now := time.Now().UTC().Truncate(time.Second)
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ID:          fmt.Sprintf("%s-%d", docRef, i),
			DocumentRef: docRef,
			Index:       i,
			Content:     text,
			Fingerprint: fingerprint.Of(text),
			TokenCount:  1,
			CreatedAt:   now,
		}
	}
	return chunks
}

func Test_SQLiteStore_SaveAndGetDocument(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	doc := createDocument(t, store, "d1", "alpha")
	assert.Equal(t, StatusPending, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := store.Document(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc.FileName, got.FileName)
	assert.Equal(t, doc.Crc, got.Crc)
	assert.Equal(t, []string{"facts"}, got.Tags)
	assert.Equal(t, StatusPending, got.Status)
	assert.WithinDuration(t, doc.CreatedAt, got.CreatedAt, time.Second)

	byPath, err := store.DocumentByPath(ctx, doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "d1", byPath.ID)

	_, err = store.Document(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_SQLiteStore_SetStatus(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "d1", "alpha")

	require.NoError(t, store.SetStatus(ctx, "d1", StatusProcessed))
	got, err := store.Document(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)

	assert.ErrorIs(t, store.SetStatus(ctx, "missing", StatusFailed), ErrNotFound)
}

func Test_SQLiteStore_ReplaceChunks(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "d1", "alpha")

	require.NoError(t, store.ReplaceChunks(ctx, "d1", makeChunks("d1", "one", "two", "three")))

	chunks, err := store.Chunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Fingerprint, fingerprint.Dims)
	}
	assert.Equal(t, fingerprint.Of("two"), chunks[1].Fingerprint)

	replacement := makeChunks("d1", "uno")
	replacement[0].ID = "d1-new"
	require.NoError(t, store.ReplaceChunks(ctx, "d1", replacement))

	chunks, err = store.Chunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "uno", chunks[0].Content)
}

func Test_SQLiteStore_ReplaceChunks_RollsBack(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "d1", "alpha")
	require.NoError(t, store.ReplaceChunks(ctx, "d1", makeChunks("d1", "one", "two")))

	broken := makeChunks("d1", "a", "b")
	broken[1].Index = 0 // violates (document_id, chunk_index) uniqueness

	require.Error(t, store.ReplaceChunks(ctx, "d1", broken))

	chunks, err := store.Chunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Content)
}

func Test_SQLiteStore_Candidates(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "d1", "alpha")
	createDocument(t, store, "d2", "beta")
	require.NoError(t, store.ReplaceChunks(ctx, "d1", makeChunks("d1", "a", "b")))
	require.NoError(t, store.ReplaceChunks(ctx, "d2", makeChunks("d2", "c")))

	all, err := store.Candidates(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := store.Candidates(ctx, []string{"d2"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "c", scoped[0].Content)

	none, err := store.Candidates(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func Test_SQLiteStore_DeleteDocumentCascades(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "d1", "alpha")
	require.NoError(t, store.ReplaceChunks(ctx, "d1", makeChunks("d1", "a", "b")))

	require.NoError(t, store.DeleteDocument(ctx, "d1"))

	chunks, err := store.Candidates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "d1"), ErrNotFound)
}

func Test_SQLiteStore_FindDocuments(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	createDocument(t, store, "report", "alpha")
	createDocument(t, store, "notes", "alpha")
	createDocument(t, store, "plan", "beta")
	require.NoError(t, store.ReplaceChunks(ctx, "plan", makeChunks("plan", "quarterly revenue targets")))

	docs, err := store.Documents(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "notes", docs[0].ID)

	docs, err = store.FindDocuments(ctx, DocumentQuery{Project: "alpha", Sort: SortOldest})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "report", docs[0].ID)

	docs, err = store.FindDocuments(ctx, DocumentQuery{Text: "REVENUE"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plan", docs[0].ID)

	docs, err = store.FindDocuments(ctx, DocumentQuery{Text: "repo"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "report", docs[0].ID)

	docs, err = store.FindDocuments(ctx, DocumentQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes", docs[0].ID)

	projects, err := store.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects)
}

func Test_SQLiteStore_FindDocuments_LiteralWildcards(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	for _, name := range []string{"50%_off.txt", "500off.txt", "50xyoff.txt"} {
		doc := Document{ID: name, FileName: name, Path: "/docs/" + name, Format: "plain_text", Project: "alpha"}
		require.NoError(t, store.SaveDocument(ctx, &doc))
	}

	docs, err := store.FindDocuments(ctx, DocumentQuery{Text: "0%_"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "50%_off.txt", docs[0].FileName)

	docs, err = store.FindDocuments(ctx, DocumentQuery{Text: "_"})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, store.RecordSearch(ctx, "100% match", "", 1))
	require.NoError(t, store.RecordSearch(ctx, "100 matches", "", 1))

	recent, err := store.RecentQueries(ctx, "100%", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"100% match"}, recent)
}

func Test_SQLiteStore_SearchHistory(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	for _, q := range []string{"revenue", "roadmap", "revenue", "revenue growth", "revenue"} {
		require.NoError(t, store.RecordSearch(ctx, q, "", 1))
	}

	popular, err := store.PopularQueries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, QueryCount{Query: "revenue", Count: 3}, popular[0])

	recent, err := store.RecentQueries(ctx, "rev", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"revenue", "revenue growth"}, recent)
}

func Test_SQLiteStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	createDocument(t, store, "d1", "alpha")
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, filepath.Join(dir, "docsearch.db"), store.Path())
	assert.FileExists(t, store.Path())

	_, err = store.Document(ctx, "d1")
	require.NoError(t, err)
}
