package docstore

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Document is an uploaded file. Project is the grouping searches can be
// scoped to.
type Document struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	Crc       uint32    `json:"crc"`
	Project   string    `json:"project"`
	Tags      []string  `json:"tags"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is an immutable segment of a document's normalized text. Chunks are
// unique per (DocumentRef, Index).
type Chunk struct {
	ID          string    `json:"id"`
	DocumentRef string    `json:"document_id"`
	Index       int       `json:"chunk_index"`
	Content     string    `json:"content"`
	Fingerprint []float64 `json:"-"`
	TokenCount  int       `json:"token_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// DocumentQuery filters FindDocuments. Zero values match everything.
type DocumentQuery struct {
	Text    string
	Project string
	Format  string
	Sort    SortOrder
	Offset  int
	Limit   int
}

type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}
