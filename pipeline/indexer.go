package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamma-omg/docsearch/chunking"
	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/fingerprint"
)

// Indexer turns extracted document text into a stored chunk set and keeps
// the document status in step: a document is processed only once its whole
// chunk set is stored.
type Indexer struct {
	log        *slog.Logger
	docs       DocumentStore
	chunks     ChunkStore
	chunkifier Chunkifier
	gen        fingerprint.Generator
	now        func() time.Time
}

func NewIndexer(log *slog.Logger, docs DocumentStore, chunks ChunkStore, chunkifier Chunkifier, gen fingerprint.Generator) *Indexer {
	return &Indexer{
		log:        log,
		docs:       docs,
		chunks:     chunks,
		chunkifier: chunkifier,
		gen:        gen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process replaces the chunks of document docID with chunks built from text
// and returns how many were stored. Earlier chunks of the document are
// dropped in the same batch.
func (ix *Indexer) Process(ctx context.Context, docID, text string) (int, error) {
	log := ix.log.With("document", docID)
	log.Info("processing document", "chars", len(text))

	if err := ix.docs.SetStatus(ctx, docID, docstore.StatusProcessing); err != nil {
		return 0, fmt.Errorf("%w: marking document %s processing: %w", ErrStorage, docID, err)
	}

	if chunking.Normalize(text) == "" {
		return 0, ix.fail(ctx, log, docID, ErrNoText)
	}

	chunks := BuildChunks(docID, text, ix.chunkifier, ix.gen, ix.now())
	log.Info("created chunks", "count", len(chunks))

	if err := ix.chunks.ReplaceChunks(ctx, docID, chunks); err != nil {
		return 0, ix.fail(ctx, log, docID, fmt.Errorf("%w: storing chunks: %w", ErrStorage, err))
	}

	if err := ix.docs.SetStatus(ctx, docID, docstore.StatusProcessed); err != nil {
		return 0, ix.fail(ctx, log, docID, fmt.Errorf("%w: marking document processed: %w", ErrStorage, err))
	}

	log.Info("document processed", "chunks", len(chunks))
	return len(chunks), nil
}

func (ix *Indexer) fail(ctx context.Context, log *slog.Logger, docID string, cause error) error {
	log.Error("document processing failed", "error", cause)

	if err := ix.docs.SetStatus(ctx, docID, docstore.StatusFailed); err != nil {
		log.Error("failed to mark document failed", "error", err)
	}

	return fmt.Errorf("processing document %s: %w", docID, cause)
}

// Forget removes a document and all of its chunks.
func (ix *Indexer) Forget(ctx context.Context, docID string) error {
	if err := ix.chunks.DeleteChunks(ctx, docID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := ix.docs.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}

	ix.log.Info("document forgotten", "document", docID)
	return nil
}

// Chunks returns the stored chunks of a document ordered by index.
func (ix *Indexer) Chunks(ctx context.Context, docID string) ([]docstore.Chunk, error) {
	if _, err := ix.docs.Document(ctx, docID); err != nil {
		return nil, err
	}

	return ix.chunks.Chunks(ctx, docID)
}
