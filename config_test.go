package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_readConfig(t *testing.T) {
	path := writeConfig(t, `
log: /tmp/docsearch.log
doc_root: /srv/docs
write_debounce_ms: 250
chunking:
  min_words: 100
  max_words: 200
  overlap_words: 10
results: 3
chunk_store: chroma
chroma:
  addr: http://chroma:8000
`)

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs", cfg.DocRoot)
	assert.Equal(t, 250, cfg.MergeEventsMs)
	assert.Equal(t, 100, cfg.Chunking.MinWords)
	assert.Equal(t, 200, cfg.Chunking.MaxWords)
	assert.Equal(t, 10, cfg.Chunking.OverlapWords)
	assert.Equal(t, 3, cfg.Results)
	assert.Equal(t, chunkStoreChroma, cfg.ChunkStore)
	assert.Equal(t, "http://chroma:8000", cfg.Chroma.Addr)
	assert.Equal(t, "docsearch", cfg.Chroma.Collection)
	assert.Equal(t, 100, cfg.Chroma.RequestSize)
}

func Test_readConfig_Defaults(t *testing.T) {
	cfg, err := readConfig(writeConfig(t, "doc_root: docs\n"))
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Chunking.MinWords)
	assert.Equal(t, 600, cfg.Chunking.MaxWords)
	assert.Equal(t, 5, cfg.Results)
	assert.Equal(t, chunkStoreSQLite, cfg.ChunkStore)
	assert.Equal(t, "data", cfg.DataDir)
}

func Test_readConfig_Env(t *testing.T) {
	t.Setenv("DOCSEARCH_POSTGRES_DSN", "postgres://user@db/docs")

	cfg, err := readConfig(writeConfig(t, "chunk_store: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://user@db/docs", cfg.Postgres.DSN)
}

func Test_readConfig_Invalid(t *testing.T) {
	var cases = []string{
		"chunk_store: mongo\n",
		"chunking:\n  min_words: 50\n  max_words: 10\n",
		"results: [1, 2\n",
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := readConfig(writeConfig(t, c))
			assert.Error(t, err)
		})
	}

	_, err := readConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
