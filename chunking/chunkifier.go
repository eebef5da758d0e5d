package chunking

import (
	"regexp"
	"strings"
)

// Segment is a chunk of text and its zero-based position within the document.
type Segment struct {
	Text  string
	Index int
}

// Config holds the word bounds used by SemanticChunkifier.
type Config struct {
	MinWords     int `yaml:"min_words"`
	MaxWords     int `yaml:"max_words"`
	OverlapWords int `yaml:"overlap_words"`
}

// DefaultConfig returns the bounds used when none are configured.
func DefaultConfig() Config {
	return Config{MinWords: 300, MaxWords: 600, OverlapWords: 50}
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SemanticChunkifier splits text into overlapping chunks along sentence
// boundaries. A buffer smaller than MinWords keeps growing even past
// MaxWords, so a run of very long sentences yields an oversized chunk.
type SemanticChunkifier struct {
	cfg Config
}

func NewSemanticChunkifier(cfg Config) *SemanticChunkifier {
	return &SemanticChunkifier{cfg: cfg}
}

func (c *SemanticChunkifier) Chunkify(text string) []Segment {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []Segment{{Text: strings.TrimSpace(text), Index: 0}}
	}

	var (
		res     []Segment
		buf     []string
		pending bool
	)

	flush := func() {
		res = append(res, Segment{Text: strings.Join(buf, " "), Index: len(res)})
		buf = overlapTail(buf, c.cfg.OverlapWords)
		pending = false
	}

	for _, s := range sentences {
		words := strings.Fields(s)
		if pending && len(buf)+len(words) > c.cfg.MaxWords && len(buf) >= c.cfg.MinWords {
			flush()
		}

		buf = append(buf, words...)
		pending = true
	}

	// the tail is kept even below MinWords once something was emitted,
	// otherwise the words after the last flush would be lost
	if pending && (len(buf) >= c.cfg.MinWords || len(res) > 0) {
		flush()
	}

	if len(res) == 0 {
		return []Segment{{Text: strings.TrimSpace(text), Index: 0}}
	}

	return res
}

func splitSentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sentences := make([]string, 0, len(matches)+1)
	for _, m := range matches {
		sentences = append(sentences, text[m[0]:m[1]])
	}

	// leading terminators belong to the first sentence
	sentences[0] = text[:matches[0][0]] + sentences[0]

	last := matches[len(matches)-1][1]
	if rest := text[last:]; strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}

func overlapTail(words []string, n int) []string {
	if n <= 0 {
		return nil
	}

	if n > len(words) {
		n = len(words)
	}

	tail := make([]string, n)
	copy(tail, words[len(words)-n:])
	return tail
}
