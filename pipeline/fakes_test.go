package pipeline

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/gamma-omg/docsearch/docstore"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDocStore struct {
	docs        map[string]docstore.Document
	statusCalls []docstore.Status
}

func newFakeDocStore(docs ...docstore.Document) *fakeDocStore {
	s := &fakeDocStore{docs: make(map[string]docstore.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}

	return s
}

func (s *fakeDocStore) Document(ctx context.Context, id string) (docstore.Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}

	return d, nil
}

func (s *fakeDocStore) Documents(ctx context.Context, project string) ([]docstore.Document, error) {
	var res []docstore.Document
	for _, d := range s.docs {
		if project == "" || d.Project == project {
			res = append(res, d)
		}
	}

	slices.SortFunc(res, func(a, b docstore.Document) int { return strings.Compare(a.ID, b.ID) })
	return res, nil
}

func (s *fakeDocStore) SetStatus(ctx context.Context, id string, status docstore.Status) error {
	d, ok := s.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}

	d.Status = status
	s.docs[id] = d
	s.statusCalls = append(s.statusCalls, status)
	return nil
}

func (s *fakeDocStore) DeleteDocument(ctx context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return docstore.ErrNotFound
	}

	delete(s.docs, id)
	return nil
}

type fakeChunkStore struct {
	chunks map[string][]docstore.Chunk
	order  []string
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string][]docstore.Chunk)}
}

func (s *fakeChunkStore) ReplaceChunks(ctx context.Context, docRef string, chunks []docstore.Chunk) error {
	if _, ok := s.chunks[docRef]; !ok {
		s.order = append(s.order, docRef)
	}

	s.chunks[docRef] = slices.Clone(chunks)
	return nil
}

func (s *fakeChunkStore) Chunks(ctx context.Context, docRef string) ([]docstore.Chunk, error) {
	return s.chunks[docRef], nil
}

func (s *fakeChunkStore) Candidates(ctx context.Context, docRefs []string) ([]docstore.Chunk, error) {
	var res []docstore.Chunk
	for _, ref := range s.order {
		if docRefs != nil && !slices.Contains(docRefs, ref) {
			continue
		}

		res = append(res, s.chunks[ref]...)
	}

	return res, nil
}

func (s *fakeChunkStore) DeleteChunks(ctx context.Context, docRef string) error {
	delete(s.chunks, docRef)
	s.order = slices.DeleteFunc(s.order, func(r string) bool { return r == docRef })
	return nil
}

type mockChunkStore struct {
	mock.Mock
}

func (m *mockChunkStore) ReplaceChunks(ctx context.Context, docRef string, chunks []docstore.Chunk) error {
	args := m.Called(ctx, docRef, chunks)
	return args.Error(0)
}

func (m *mockChunkStore) Chunks(ctx context.Context, docRef string) ([]docstore.Chunk, error) {
	args := m.Called(ctx, docRef)
	return args.Get(0).([]docstore.Chunk), args.Error(1)
}

func (m *mockChunkStore) Candidates(ctx context.Context, docRefs []string) ([]docstore.Chunk, error) {
	args := m.Called(ctx, docRefs)
	return args.Get(0).([]docstore.Chunk), args.Error(1)
}

func (m *mockChunkStore) DeleteChunks(ctx context.Context, docRef string) error {
	args := m.Called(ctx, docRef)
	return args.Error(0)
}

type fakeHistory struct {
	recorded []string
}

func (h *fakeHistory) RecordSearch(ctx context.Context, query, project string, results int) error {
	h.recorded = append(h.recorded, query)
	return nil
}

func (h *fakeHistory) RecentQueries(ctx context.Context, text string, limit int) ([]string, error) {
	var res []string
	for i := len(h.recorded) - 1; i >= 0 && len(res) < limit; i-- {
		if strings.Contains(h.recorded[i], text) {
			res = append(res, h.recorded[i])
		}
	}

	return res, nil
}

func (h *fakeHistory) PopularQueries(ctx context.Context, limit int) ([]docstore.QueryCount, error) {
	counts := make(map[string]int)
	for _, q := range h.recorded {
		counts[q]++
	}

	var res []docstore.QueryCount
	for q, c := range counts {
		res = append(res, docstore.QueryCount{Query: q, Count: c})
	}

	slices.SortFunc(res, func(a, b docstore.QueryCount) int { return b.Count - a.Count })
	if len(res) > limit {
		res = res[:limit]
	}

	return res, nil
}

type fixedGenerator map[string][]float64

func (g fixedGenerator) Fingerprint(text string) []float64 {
	return g[text]
}
