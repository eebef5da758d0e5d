package docstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/gamma-omg/docsearch/fingerprint"
)

const (
	DocumentRef = "document_id"
	ChunkIndex  = "chunk_index"
	TokenCount  = "token_count"
	CreatedAt   = "created_at"
)

// ChromaStore keeps chunks in a Chroma collection. Fingerprints are stored as
// the collection's embeddings, so ranking can run on the stored vectors.
type ChromaStore struct {
	requestSize int
	col         chroma.Collection
}

type ChromaStoreConfig struct {
	BaseURL     string
	Collection  string
	RequestSize int
	Generator   fingerprint.Generator
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	col, err := client.GetOrCreateCollection(ctx, cfg.Collection,
		chroma.WithEmbeddingFunctionCreate(NewFingerprintEmbeddings(cfg.Generator)))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Collection, err)
	}

	return &ChromaStore{requestSize: cfg.RequestSize, col: col}, nil
}

// ReplaceChunks deletes the stored chunks of docRef and adds chunks in
// batches of requestSize. Chroma has no transactions: when a batch fails, the
// batches already added are deleted again so no partial set is left behind.
func (ds *ChromaStore) ReplaceChunks(ctx context.Context, docRef string, chunks []Chunk) error {
	if err := ds.DeleteChunks(ctx, docRef); err != nil {
		return err
	}

	step := ds.requestSize
	if step <= 0 {
		step = len(chunks)
	}

	for pos := 0; pos < len(chunks); pos += step {
		batch := chunks[pos:min(pos+step, len(chunks))]
		if err := ds.add(ctx, docRef, batch); err != nil {
			if pos > 0 {
				_ = ds.DeleteChunks(ctx, docRef)
			}
			return err
		}
	}

	return nil
}

func (ds *ChromaStore) add(ctx context.Context, docRef string, batch []Chunk) error {
	ids := make([]chroma.DocumentID, len(batch))
	texts := make([]string, len(batch))
	embs := make([]embeddings.Embedding, len(batch))
	metas := make([]chroma.DocumentMetadata, len(batch))

	for i, c := range batch {
		if c.DocumentRef != docRef {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentRef, docRef)
		}

		ids[i] = chroma.DocumentID(c.ID)
		texts[i] = c.Content
		embs[i] = embeddings.NewEmbeddingFromFloat32(toFloat32(c.Fingerprint))
		metas[i] = chunkMetadata(c)
	}

	err := ds.col.Add(ctx,
		chroma.WithIDs(ids...),
		chroma.WithTexts(texts...),
		chroma.WithEmbeddings(embs...),
		chroma.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add chunks of %s: %w", docRef, err)
	}

	return nil
}

func (ds *ChromaStore) Chunks(ctx context.Context, docRef string) ([]Chunk, error) {
	chunks, err := ds.get(ctx, chroma.WithWhereGet(chroma.EqString(DocumentRef, docRef)))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(chunks, func(a, b Chunk) int { return a.Index - b.Index })
	return chunks, nil
}

// Candidates returns the chunks of docRefs, or every chunk when docRefs is nil.
func (ds *ChromaStore) Candidates(ctx context.Context, docRefs []string) ([]Chunk, error) {
	if docRefs == nil {
		return ds.get(ctx)
	}
	if len(docRefs) == 0 {
		return nil, nil
	}

	return ds.get(ctx, chroma.WithWhereGet(chroma.InString(DocumentRef, docRefs...)))
}

func (ds *ChromaStore) DeleteChunks(ctx context.Context, docRef string) error {
	err := ds.col.Delete(ctx, chroma.WithWhereDelete(chroma.EqString(DocumentRef, docRef)))
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", docRef, err)
	}

	return nil
}

func (ds *ChromaStore) get(ctx context.Context, opts ...chroma.CollectionGetOption) ([]Chunk, error) {
	opts = append(opts, chroma.WithIncludeGet(chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeEmbeddings))
	res, err := ds.col.Get(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	ids := res.GetIDs()
	docs := res.GetDocuments()
	metas := res.GetMetadatas()
	embs := res.GetEmbeddings()

	chunks := make([]Chunk, 0, len(ids))
	for i := range ids {
		c := chunkFromMetadata(metas[i])
		c.ID = string(ids[i])
		c.Content = docs[i].ContentString()
		c.Fingerprint = toFloat64(embs[i].ContentAsFloat32())
		chunks = append(chunks, c)
	}

	return chunks, nil
}

func chunkMetadata(c Chunk) chroma.DocumentMetadata {
	return chroma.NewDocumentMetadata(
		chroma.NewStringAttribute(DocumentRef, c.DocumentRef),
		chroma.NewIntAttribute(ChunkIndex, int64(c.Index)),
		chroma.NewIntAttribute(TokenCount, int64(c.TokenCount)),
		chroma.NewIntAttribute(CreatedAt, c.CreatedAt.UnixMilli()),
	)
}

func chunkFromMetadata(meta chroma.DocumentMetadata) Chunk {
	ref, _ := meta.GetString(DocumentRef)
	return Chunk{
		DocumentRef: ref,
		Index:       int(metaInt(meta, ChunkIndex)),
		TokenCount:  int(metaInt(meta, TokenCount)),
		CreatedAt:   time.UnixMilli(metaInt(meta, CreatedAt)).UTC(),
	}
}

// metaInt reads an integer attribute. Metadata decoded from JSON may carry
// numbers as floats.
func metaInt(meta chroma.DocumentMetadata, key string) int64 {
	if v, ok := meta.GetInt(key); ok {
		return v
	}
	if v, ok := meta.GetFloat(key); ok {
		return int64(v)
	}
	return 0
}

// FingerprintEmbeddings lets Chroma compute embeddings with a fingerprint
// generator whenever texts are added or queried without vectors.
type FingerprintEmbeddings struct {
	gen fingerprint.Generator
}

func NewFingerprintEmbeddings(gen fingerprint.Generator) *FingerprintEmbeddings {
	return &FingerprintEmbeddings{gen: gen}
}

func (e *FingerprintEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	res := make([]embeddings.Embedding, len(texts))
	for i, t := range texts {
		res[i] = embeddings.NewEmbeddingFromFloat32(toFloat32(e.gen.Fingerprint(t)))
	}
	return res, nil
}

func (e *FingerprintEmbeddings) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	return embeddings.NewEmbeddingFromFloat32(toFloat32(e.gen.Fingerprint(text))), nil
}
