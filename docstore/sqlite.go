package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gamma-omg/docsearch/docstore/migrations"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps documents, chunks and the search history in a single
// SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docsearch.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

const documentColumns = "id, file_name, path, format, size, crc, project, tags, status, created_at, updated_at"

// SaveDocument inserts doc or updates the stored row with the same id.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name = excluded.file_name,
			path = excluded.path,
			format = excluded.format,
			size = excluded.size,
			crc = excluded.crc,
			project = excluded.project,
			tags = excluded.tags,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, doc.ID, doc.FileName, doc.Path, doc.Format, doc.Size, int64(doc.Crc), doc.Project,
		string(tags), string(doc.Status), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Document(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

func (s *SQLiteStore) DocumentByPath(ctx context.Context, path string) (Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE path = ? ORDER BY created_at LIMIT 1", path)
	return scanDocument(row)
}

// Documents lists documents newest first. An empty project lists all of them.
func (s *SQLiteStore) Documents(ctx context.Context, project string) ([]Document, error) {
	return s.FindDocuments(ctx, DocumentQuery{Project: project})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (s *SQLiteStore) FindDocuments(ctx context.Context, q DocumentQuery) ([]Document, error) {
	var (
		where []string
		args  []any
	)

	if q.Text != "" {
		where = append(where, `(file_name LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM chunks c WHERE c.document_id = documents.id AND c.content LIKE ? ESCAPE '\'))`)
		pattern := "%" + likeEscaper.Replace(q.Text) + "%"
		args = append(args, pattern, pattern)
	}
	if q.Project != "" {
		where = append(where, "project = ?")
		args = append(args, q.Project)
	}
	if q.Format != "" {
		where = append(where, "format = ?")
		args = append(args, q.Format)
	}

	query := "SELECT " + documentColumns + " FROM documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	if q.Sort == SortOldest {
		query += " ORDER BY created_at ASC, rowid ASC"
	} else {
		query += " ORDER BY created_at DESC, rowid DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Projects returns the distinct non-empty project names in alphabetical order.
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT project FROM documents WHERE project != '' ORDER BY project")
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	return expectAffected(res, "document "+id)
}

// DeleteDocument removes the document and, through the foreign key, its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	return expectAffected(res, "document "+id)
}

// ReplaceChunks drops every stored chunk of docRef and stores chunks in their
// place within one transaction, so readers never see a partial set.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, docRef string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docRef); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, fingerprint, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.DocumentRef != docRef {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentRef, docRef)
		}

		_, err := stmt.ExecContext(ctx, c.ID, c.DocumentRef, c.Index, c.Content,
			encodeVector(c.Fingerprint), c.TokenCount, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	return nil
}

const chunkColumns = "id, document_id, chunk_index, content, fingerprint, token_count, created_at"

// Chunks returns the chunks of docRef ordered by index.
func (s *SQLiteStore) Chunks(ctx context.Context, docRef string) ([]Chunk, error) {
	return s.queryChunks(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", docRef)
}

// Candidates returns the chunks of the given documents in insertion order.
// A nil docRefs returns every stored chunk.
func (s *SQLiteStore) Candidates(ctx context.Context, docRefs []string) ([]Chunk, error) {
	if docRefs == nil {
		return s.queryChunks(ctx, "SELECT "+chunkColumns+" FROM chunks ORDER BY rowid")
	}
	if len(docRefs) == 0 {
		return nil, nil
	}

	args := make([]any, len(docRefs))
	for i, r := range docRefs {
		args[i] = r
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(docRefs)), ",")

	return s.queryChunks(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id IN ("+placeholders+") ORDER BY rowid", args...)
}

func (s *SQLiteStore) DeleteChunks(ctx context.Context, docRef string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docRef); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	return nil
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c  Chunk
			fp []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentRef, &c.Index, &c.Content, &fp, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Fingerprint = decodeVector(fp)
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

func (s *SQLiteStore) RecordSearch(ctx context.Context, query, project string, results int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO search_history (query, project, results, created_at) VALUES (?, ?, ?, ?)",
		query, project, results, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording search: %w", err)
	}

	return nil
}

// PopularQueries returns the most frequent queries, most frequent first.
func (s *SQLiteStore) PopularQueries(ctx context.Context, limit int) ([]QueryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n FROM search_history
		GROUP BY query ORDER BY n DESC, MAX(created_at) DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying popular queries: %w", err)
	}
	defer rows.Close()

	var res []QueryCount
	for rows.Next() {
		var qc QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, fmt.Errorf("scanning query count: %w", err)
		}
		res = append(res, qc)
	}

	return res, rows.Err()
}

// RecentQueries returns distinct past queries containing text, most recent first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, text string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query FROM search_history WHERE query LIKE ? ESCAPE '\'
		GROUP BY query ORDER BY MAX(id) DESC LIMIT ?
	`, "%"+likeEscaper.Replace(text)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		res = append(res, q)
	}

	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var (
		doc    Document
		crc    int64
		tags   string
		status string
	)

	err := row.Scan(&doc.ID, &doc.FileName, &doc.Path, &doc.Format, &doc.Size, &crc,
		&doc.Project, &tags, &status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scanning document: %w", err)
	}

	doc.Crc = uint32(crc)
	doc.Status = Status(status)
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return Document{}, fmt.Errorf("unmarshalling tags: %w", err)
	}

	return doc, nil
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}

	return nil
}
