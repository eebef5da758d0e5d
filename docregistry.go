package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/readers"
	"github.com/google/uuid"
)

type DocCatalog interface {
	SaveDocument(ctx context.Context, doc *docstore.Document) error
	DocumentByPath(ctx context.Context, path string) (docstore.Document, error)
	Documents(ctx context.Context, project string) ([]docstore.Document, error)
}

type DocIndexer interface {
	Process(ctx context.Context, docID, text string) (int, error)
	Forget(ctx context.Context, docID string) error
}

type FileReader interface {
	CanRead(path string) bool
	ReadText(path string) (string, readers.Format, error)
}

// DocRegistry keeps the documents stored under root in step with the files on
// disk. A file at root/<project>/... belongs to <project>; files directly
// under root have no project.
type DocRegistry struct {
	log              *slog.Logger
	root             string
	mergeEventsDelay time.Duration
	catalog          DocCatalog
	indexer          DocIndexer
	reader           FileReader
}

type DiskDoc struct {
	File string
	Crc  uint32
}

type diskDocs map[string]DiskDoc
type dbDocs map[string]docstore.Document

// unreadable holds paths that exist on disk but could not be extracted.
type unreadable map[string]struct{}

// Sync ingests files that are new or changed since the last run and forgets
// documents whose file is gone. Failures on single files are logged and do
// not stop the sync.
func (dr *DocRegistry) Sync(ctx context.Context) error {
	disk, failed, err := dr.collectDocs()
	if err != nil {
		return err
	}

	diskMap := make(diskDocs)
	for _, d := range disk {
		diskMap[d.File] = d
	}

	db, err := dr.catalog.Documents(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list stored documents: %w", err)
	}

	dbMap := make(dbDocs)
	for _, d := range db {
		if dr.owns(d.Path) {
			dbMap[d.Path] = d
		}
	}

	dr.injestNewDocuments(ctx, diskMap, dbMap)

	return dr.forgetRemovedDocuments(ctx, diskMap, failed, dbMap)
}

// collectDocs walks root and checksums every readable file. Files that are
// supported but fail to extract are returned in failed.
func (dr *DocRegistry) collectDocs() (docs []DiskDoc, failed unreadable, err error) {
	failed = make(unreadable)
	err = filepath.WalkDir(dr.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if !dr.reader.CanRead(path) {
			dr.log.Warn(fmt.Sprintf("unsupported file: %s", path))
			return nil
		}

		text, _, e := dr.reader.ReadText(path)
		if e != nil {
			dr.log.Error("failed to read file", "file", path, "error", e)
			failed[path] = struct{}{}
			return nil
		}

		docs = append(docs, DiskDoc{File: path, Crc: checksum(text)})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dr.root, err)
	}

	return docs, failed, nil
}

func (dr *DocRegistry) injestNewDocuments(ctx context.Context, disk diskDocs, db dbDocs) {
	for _, diskDoc := range disk {
		dbDoc, ok := db[diskDoc.File]
		if ok && dbDoc.Crc == diskDoc.Crc && dbDoc.Status == docstore.StatusProcessed {
			continue
		}

		var existing *docstore.Document
		if ok {
			existing = &dbDoc
		}

		if err := dr.ingest(ctx, diskDoc.File, existing); err != nil {
			dr.log.Error("failed to ingest document", "file", diskDoc.File, "error", err)
		}
	}
}

// forgetRemovedDocuments forgets documents whose file is gone. A file that is
// still present but could not be read keeps its document.
func (dr *DocRegistry) forgetRemovedDocuments(ctx context.Context, disk diskDocs, failed unreadable, db dbDocs) error {
	for _, dbDoc := range db {
		if _, ok := disk[dbDoc.Path]; ok {
			continue
		}
		if _, ok := failed[dbDoc.Path]; ok {
			continue
		}

		err := dr.indexer.Forget(ctx, dbDoc.ID)
		if err != nil {
			return fmt.Errorf("failed to remove document %s from store: %w", dbDoc.Path, err)
		}
	}

	return nil
}

// ingest extracts path and (re)indexes it under existing, or under a new
// document when existing is nil. Unchanged processed documents are skipped.
func (dr *DocRegistry) ingest(ctx context.Context, path string, existing *docstore.Document) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	text, format, err := dr.reader.ReadText(path)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	crc := checksum(text)
	if existing != nil && existing.Crc == crc && existing.Status == docstore.StatusProcessed {
		return nil
	}

	doc := docstore.Document{
		ID:       uuid.NewString(),
		FileName: filepath.Base(path),
		Path:     path,
		Project:  dr.projectOf(path),
	}
	if existing != nil {
		doc = *existing
	}
	doc.Format = string(format)
	doc.Size = info.Size()
	doc.Crc = crc
	doc.Status = docstore.StatusPending

	if err := dr.catalog.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("failed to store document %s: %w", path, err)
	}

	if _, err := dr.indexer.Process(ctx, doc.ID, text); err != nil {
		return err
	}

	return nil
}

// Watch starts watching root and returns once the watcher is running. File
// events are merged per path and applied after mergeEventsDelay of quiet.
// The watcher stops when ctx is done.
func (dr *DocRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := dr.watchTree(watcher, dr.root); err != nil {
		watcher.Close()
		return err
	}

	go dr.watchLoop(ctx, watcher)
	return nil
}

func (dr *DocRegistry) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (dr *DocRegistry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var (
		mu      sync.Mutex
		applyMu sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	flush := func() {
		mu.Lock()
		paths := pending
		pending = make(map[string]struct{})
		mu.Unlock()

		applyMu.Lock()
		defer applyMu.Unlock()
		for path := range paths {
			dr.apply(ctx, watcher, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			dr.log.Error("file watcher error", "error", err)

		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Remove) && !e.Has(fsnotify.Rename) {
				continue
			}

			mu.Lock()
			pending[e.Name] = struct{}{}
			mu.Unlock()

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(dr.mergeEventsDelay, flush)
		}
	}
}

// apply brings the store in line with the current state of path.
func (dr *DocRegistry) apply(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		dr.forgetPath(ctx, path)

	case err != nil:
		dr.log.Error("failed to stat changed file", "file", path, "error", err)

	case info.IsDir():
		if err := dr.watchTree(watcher, path); err != nil {
			dr.log.Error("failed to watch new directory", "dir", path, "error", err)
		}
		dr.syncDir(ctx, path)

	case dr.reader.CanRead(path):
		dr.ingestPath(ctx, path)

	default:
		dr.log.Warn(fmt.Sprintf("unsupported file: %s", path))
	}
}

// forgetPath forgets the document stored for path, or every document below it
// when path was a directory.
func (dr *DocRegistry) forgetPath(ctx context.Context, path string) {
	docs, err := dr.catalog.Documents(ctx, "")
	if err != nil {
		dr.log.Error("failed to list stored documents", "error", err)
		return
	}

	prefix := path + string(filepath.Separator)
	for _, d := range docs {
		if d.Path != path && !strings.HasPrefix(d.Path, prefix) {
			continue
		}

		if err := dr.indexer.Forget(ctx, d.ID); err != nil {
			dr.log.Error("failed to forget document", "file", d.Path, "error", err)
		}
	}
}

func (dr *DocRegistry) syncDir(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !dr.reader.CanRead(path) {
			return nil
		}

		dr.ingestPath(ctx, path)
		return nil
	})
}

func (dr *DocRegistry) ingestPath(ctx context.Context, path string) {
	var existing *docstore.Document
	doc, err := dr.catalog.DocumentByPath(ctx, path)
	if err == nil {
		existing = &doc
	} else if !errors.Is(err, docstore.ErrNotFound) {
		dr.log.Error("failed to look up document", "file", path, "error", err)
		return
	}

	if err := dr.ingest(ctx, path, existing); err != nil {
		dr.log.Error("failed to ingest document", "file", path, "error", err)
	}
}

func (dr *DocRegistry) owns(path string) bool {
	rel, err := filepath.Rel(dr.root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func (dr *DocRegistry) projectOf(path string) string {
	rel, err := filepath.Rel(dr.root, path)
	if err != nil {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}

	return parts[0]
}

func checksum(text string) uint32 {
	return crc32.Checksum([]byte(text), crc32.IEEETable)
}
