package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/fingerprint"
	"github.com/gamma-omg/docsearch/ranking"
)

const (
	DefaultTopK    = 5
	suggestTopK    = 3
	suggestTextLen = 100
	minSuggestLen  = 2
)

// Scope restricts a search to the documents of one project.
type Scope struct {
	Project string
}

type Suggestion struct {
	Text      string `json:"text"`
	Highlight string `json:"highlight"`
}

// Searcher answers free-text queries over the chunks of processed documents.
// It holds no mutable state and is safe for concurrent use.
type Searcher struct {
	log     *slog.Logger
	docs    DocumentStore
	chunks  ChunkStore
	history SearchHistory
	gen     fingerprint.Generator
}

// NewSearcher builds a Searcher. history may be nil, in which case queries
// are not recorded.
func NewSearcher(log *slog.Logger, docs DocumentStore, chunks ChunkStore, history SearchHistory, gen fingerprint.Generator) *Searcher {
	return &Searcher{log: log, docs: docs, chunks: chunks, history: history, gen: gen}
}

// Search ranks stored chunks against query and records the query in the
// search history.
func (s *Searcher) Search(ctx context.Context, query string, scope Scope, topK int) ([]ranking.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	res, err := s.search(ctx, query, scope, topK)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.RecordSearch(ctx, query, scope.Project, len(res)); err != nil {
			s.log.Warn("failed to record search", "query", query, "error", err)
		}
	}

	return res, nil
}

func (s *Searcher) search(ctx context.Context, query string, scope Scope, topK int) ([]ranking.Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	docs, err := s.docs.Documents(ctx, scope.Project)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %w", ErrStorage, err)
	}

	searchable := make(map[string]docstore.Document, len(docs))
	for _, d := range docs {
		if d.Status == docstore.StatusProcessed {
			searchable[d.ID] = d
		}
	}

	var refs []string
	if scope.Project != "" {
		if len(searchable) == 0 {
			return []ranking.Result{}, nil
		}

		refs = make([]string, 0, len(searchable))
		for _, d := range docs {
			if _, ok := searchable[d.ID]; ok {
				refs = append(refs, d.ID)
			}
		}
	}

	chunks, err := s.chunks.Candidates(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching chunks: %w", ErrStorage, err)
	}

	candidates := make([]ranking.Candidate, 0, len(chunks))
	for _, c := range chunks {
		d, ok := searchable[c.DocumentRef]
		if !ok {
			continue
		}

		candidates = append(candidates, ranking.Candidate{
			ChunkRef:    c.ID,
			DocumentRef: c.DocumentRef,
			Index:       c.Index,
			Content:     c.Content,
			Fingerprint: c.Fingerprint,
			FileName:    d.FileName,
			Project:     d.Project,
			Tags:        d.Tags,
		})
	}

	res, err := ranking.Rank(s.gen.Fingerprint(query), candidates, topK, ranking.InScope(scope.Project))
	if err != nil {
		s.log.Error("ranking aborted", "query", query, "error", err)
		return nil, fmt.Errorf("search unavailable: %w", err)
	}

	return res, nil
}

// Suggest returns the beginnings of the best matching chunks for a partial
// query. Queries shorter than two characters yield nothing.
func (s *Searcher) Suggest(ctx context.Context, q string) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSuggestLen {
		return []Suggestion{}, nil
	}

	res, err := s.search(ctx, q, Scope{}, suggestTopK)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, len(res))
	for i, r := range res {
		suggestions[i] = Suggestion{
			Text:      ranking.Snippet(r.Content, suggestTextLen),
			Highlight: q,
		}
	}

	return suggestions, nil
}

// PastQueries returns earlier queries containing q, most recent first.
func (s *Searcher) PastQueries(ctx context.Context, q string, limit int) ([]string, error) {
	q = strings.TrimSpace(q)
	if s.history == nil || len([]rune(q)) < minSuggestLen {
		return []string{}, nil
	}

	return s.history.RecentQueries(ctx, q, limit)
}

func (s *Searcher) PopularQueries(ctx context.Context, limit int) ([]docstore.QueryCount, error) {
	if s.history == nil {
		return []docstore.QueryCount{}, nil
	}

	return s.history.PopularQueries(ctx, limit)
}
