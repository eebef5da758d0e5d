package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gamma-omg/docsearch/chunking"
	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/fingerprint"
	"github.com/gamma-omg/docsearch/pipeline"
	"github.com/gamma-omg/docsearch/readers"
)

// app holds the stores and services every command works with. Documents and
// the search history always live in sqlite; chunks go to the configured
// chunk store.
type app struct {
	cfg      *Config
	log      *slog.Logger
	docs     *docstore.SQLiteStore
	chunks   pipeline.ChunkStore
	reader   *readers.Registry
	indexer  *pipeline.Indexer
	searcher *pipeline.Searcher
	closers  []io.Closer
}

func openApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, reader: readers.Default(readers.DefaultMaxSize)}

	if err := a.openLog(); err != nil {
		a.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	a.docs, err = docstore.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	a.closers = append(a.closers, a.docs)
	a.log.Info("opened document store", "path", a.docs.Path())

	gen := fingerprint.SHA256{}
	a.chunks, err = a.openChunkStore(ctx, gen)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.indexer = pipeline.NewIndexer(a.log, a.docs, a.chunks, chunking.NewSemanticChunkifier(cfg.Chunking), gen)
	a.searcher = pipeline.NewSearcher(a.log, a.docs, a.chunks, a.docs, gen)

	return a, nil
}

func (a *app) openLog() error {
	if a.cfg.LogFile == "" {
		a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		return nil
	}

	logFile, err := os.OpenFile(a.cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.closers = append(a.closers, logFile)

	a.log = slog.New(slog.NewJSONHandler(logFile, nil))
	return nil
}

func (a *app) openChunkStore(ctx context.Context, gen fingerprint.Generator) (pipeline.ChunkStore, error) {
	switch a.cfg.ChunkStore {
	case chunkStoreChroma:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
			BaseURL:     a.cfg.Chroma.Addr,
			Collection:  a.cfg.Chroma.Collection,
			RequestSize: a.cfg.Chroma.RequestSize,
			Generator:   gen,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Chroma chunk store: %w", err)
		}

		return store, nil

	case chunkStorePostgres:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		store, err := docstore.NewPostgresStore(ctx, a.cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres chunk store: %w", err)
		}
		a.closers = append(a.closers, store)

		return store, nil

	default:
		return a.docs, nil
	}
}

func (a *app) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil

	return nil
}
