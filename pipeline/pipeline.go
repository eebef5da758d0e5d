// Package pipeline wires normalization, chunking, fingerprinting and ranking
// to the document and chunk stores.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/gamma-omg/docsearch/chunking"
	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/fingerprint"
	"github.com/google/uuid"
)

var (
	ErrEmptyQuery = errors.New("search query is required")
	ErrNoText     = errors.New("no text content extracted from document")
	ErrStorage    = errors.New("storage failure")
)

type ChunkStore interface {
	ReplaceChunks(ctx context.Context, docRef string, chunks []docstore.Chunk) error
	Chunks(ctx context.Context, docRef string) ([]docstore.Chunk, error)
	Candidates(ctx context.Context, docRefs []string) ([]docstore.Chunk, error)
	DeleteChunks(ctx context.Context, docRef string) error
}

type DocumentStore interface {
	Document(ctx context.Context, id string) (docstore.Document, error)
	Documents(ctx context.Context, project string) ([]docstore.Document, error)
	SetStatus(ctx context.Context, id string, status docstore.Status) error
	DeleteDocument(ctx context.Context, id string) error
}

type SearchHistory interface {
	RecordSearch(ctx context.Context, query, project string, results int) error
	RecentQueries(ctx context.Context, text string, limit int) ([]string, error)
	PopularQueries(ctx context.Context, limit int) ([]docstore.QueryCount, error)
}

type Chunkifier interface {
	Chunkify(text string) []chunking.Segment
}

// BuildChunks normalizes text, splits it and fingerprints every segment. The
// result is the complete chunk set of docRef, indexed from 0.
func BuildChunks(docRef, text string, c Chunkifier, gen fingerprint.Generator, now time.Time) []docstore.Chunk {
	segments := c.Chunkify(chunking.Normalize(text))

	chunks := make([]docstore.Chunk, 0, len(segments))
	for _, s := range segments {
		chunks = append(chunks, docstore.Chunk{
			ID:          uuid.New().String(),
			DocumentRef: docRef,
			Index:       s.Index,
			Content:     s.Text,
			Fingerprint: gen.Fingerprint(s.Text),
			TokenCount:  chunking.WordCount(s.Text),
			CreatedAt:   now,
		})
	}

	return chunks
}
