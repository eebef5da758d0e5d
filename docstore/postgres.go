package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gamma-omg/docsearch/fingerprint"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps chunks in Postgres with the fingerprint in a pgvector
// column.
type PostgresStore struct {
	db *sqlx.DB
}

type pgChunk struct {
	ID          string          `db:"id"`
	DocumentRef string          `db:"document_id"`
	Index       int             `db:"chunk_index"`
	Content     string          `db:"content"`
	Fingerprint pgvector.Vector `db:"fingerprint"`
	TokenCount  int             `db:"token_count"`
	CreatedAt   time.Time       `db:"created_at"`
}

var pgSchema = fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;
	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		content      TEXT NOT NULL,
		fingerprint  vector(%d) NOT NULL,
		token_count  INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL,
		seq          BIGSERIAL,
		UNIQUE (document_id, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`, fingerprint.Dims)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ReplaceChunks(ctx context.Context, docRef string, chunks []Chunk) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docRef); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	const query = `
		INSERT INTO chunks (id, document_id, chunk_index, content, fingerprint, token_count, created_at)
		VALUES (:id, :document_id, :chunk_index, :content, :fingerprint, :token_count, :created_at)
	`
	for _, c := range chunks {
		if c.DocumentRef != docRef {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentRef, docRef)
		}

		if _, err := tx.NamedExecContext(ctx, query, toPgChunk(c)); err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	return nil
}

const pgChunkColumns = `id, document_id, chunk_index, content, fingerprint, token_count, created_at`

func (s *PostgresStore) Chunks(ctx context.Context, docRef string) ([]Chunk, error) {
	var rows []pgChunk
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+pgChunkColumns+` FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, docRef)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	return fromPgChunks(rows), nil
}

func (s *PostgresStore) Candidates(ctx context.Context, docRefs []string) ([]Chunk, error) {
	var (
		rows []pgChunk
		err  error
	)

	switch {
	case docRefs == nil:
		err = s.db.SelectContext(ctx, &rows, `SELECT `+pgChunkColumns+` FROM chunks ORDER BY seq`)
	case len(docRefs) == 0:
		return nil, nil
	default:
		err = s.db.SelectContext(ctx, &rows,
			`SELECT `+pgChunkColumns+` FROM chunks WHERE document_id = ANY($1) ORDER BY seq`, docRefs)
	}
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	return fromPgChunks(rows), nil
}

func (s *PostgresStore) DeleteChunks(ctx context.Context, docRef string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docRef); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	return nil
}

func toPgChunk(c Chunk) pgChunk {
	return pgChunk{
		ID:          c.ID,
		DocumentRef: c.DocumentRef,
		Index:       c.Index,
		Content:     c.Content,
		Fingerprint: pgvector.NewVector(toFloat32(c.Fingerprint)),
		TokenCount:  c.TokenCount,
		CreatedAt:   c.CreatedAt,
	}
}

func fromPgChunks(rows []pgChunk) []Chunk {
	chunks := make([]Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = Chunk{
			ID:          r.ID,
			DocumentRef: r.DocumentRef,
			Index:       r.Index,
			Content:     r.Content,
			Fingerprint: toFloat64(r.Fingerprint.Slice()),
			TokenCount:  r.TokenCount,
			CreatedAt:   r.CreatedAt,
		}
	}
	return chunks
}
