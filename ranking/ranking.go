package ranking

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

const SnippetLen = 150

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Candidate is a stored chunk eligible for ranking together with the
// metadata of the document it belongs to.
type Candidate struct {
	ChunkRef    string
	DocumentRef string
	Index       int
	Content     string
	Fingerprint []float64
	FileName    string
	Project     string
	Tags        []string
}

type Result struct {
	ChunkRef    string   `json:"id"`
	DocumentRef string   `json:"document_id"`
	FileName    string   `json:"file_name"`
	Project     string   `json:"project"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
	ChunkIndex  int      `json:"chunk_index"`
	Similarity  float64  `json:"similarity"`
	Snippet     string   `json:"snippet"`
}

type options struct {
	filter func(Candidate) bool
}

type Option func(*options)

// InScope keeps only candidates that belong to project. An empty project
// keeps everything.
func InScope(project string) Option {
	return func(o *options) {
		if project == "" {
			return
		}
		o.filter = func(c Candidate) bool { return c.Project == project }
	}
}

// Cosine returns the cosine similarity of a and b. It is 0 when either vector
// has zero norm, including a zero vector compared with itself.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	na = math.Sqrt(na)
	nb = math.Sqrt(nb)
	if na == 0 || nb == 0 {
		return 0, nil
	}

	return dot / (na * nb), nil
}

// Rank scores candidates against query and returns at most topK results with
// a positive similarity, best first. Scores are rounded to two decimals
// before filtering and ordering; equal scores keep the candidates' order.
func Rank(query []float64, candidates []Candidate, topK int, opts ...Option) ([]Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if o.filter != nil && !o.filter(c) {
			continue
		}

		sim, err := Cosine(query, c.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("scoring chunk %s: %w", c.ChunkRef, err)
		}

		sim = math.Round(sim*100) / 100
		if sim <= 0 {
			continue
		}

		scored = append(scored, Result{
			ChunkRef:    c.ChunkRef,
			DocumentRef: c.DocumentRef,
			FileName:    c.FileName,
			Project:     c.Project,
			Tags:        c.Tags,
			Content:     c.Content,
			ChunkIndex:  c.Index,
			Similarity:  sim,
			Snippet:     Snippet(c.Content, SnippetLen),
		})
	}

	slices.SortStableFunc(scored, func(a, b Result) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if topK < len(scored) {
		scored = scored[:max(topK, 0)]
	}

	return scored, nil
}

// Snippet returns the first n characters of text.
func Snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}

	return string(r[:n])
}
