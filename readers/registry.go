package readers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

var ErrTooLarge = errors.New("file is too large")

// DefaultMaxSize is the largest file ReadText accepts unless configured otherwise.
const DefaultMaxSize = 10 << 20

// Registry dispatches extraction to the Extractor registered for a format.
type Registry struct {
	maxSize    int64
	extractors map[Format]Extractor
}

func NewRegistry(maxSize int64) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &Registry{maxSize: maxSize, extractors: make(map[Format]Extractor)}
}

// Default returns a registry with an extractor for every supported format.
func Default(maxSize int64) *Registry {
	r := NewRegistry(maxSize)
	_ = r.Register(PdfExtractor{}, DocxExtractor{}, PptxExtractor{}, PlainTextExtractor{})
	return r
}

func (r *Registry) Register(extractors ...Extractor) error {
	for _, e := range extractors {
		if _, ok := r.extractors[e.Format()]; ok {
			return fmt.Errorf("extractor already registered for format %s", e.Format())
		}

		r.extractors[e.Format()] = e
	}

	return nil
}

// sniffLen is the number of leading bytes used to guess the format of a file
// without an extension.
const sniffLen = 512

// detect picks the format from the extension, or from the leading bytes of
// the file when the name has no extension.
func detect(path string) (Format, error) {
	if filepath.Ext(path) != "" {
		return FormatFromPath(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return FormatFromMime(http.DetectContentType(head[:n]))
}

// CanRead reports whether path has a format with a registered extractor.
func (r *Registry) CanRead(path string) bool {
	f, err := detect(path)
	if err != nil {
		return false
	}

	_, ok := r.extractors[f]
	return ok
}

// ReadText extracts the text of the file at path and returns it together
// with the detected format.
func (r *Registry) ReadText(path string) (string, Format, error) {
	f, err := detect(path)
	if err != nil {
		return "", "", err
	}

	e, ok := r.extractors[f]
	if !ok {
		return "", "", fmt.Errorf("%w: no extractor for %s", ErrUnsupportedFormat, f)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > r.maxSize {
		return "", "", fmt.Errorf("%s: %w (%d > %d bytes)", path, ErrTooLarge, info.Size(), r.maxSize)
	}

	text, err := e.Extract(file)
	if err != nil {
		return "", "", fmt.Errorf("extracting %s: %w", path, err)
	}

	return text, f, nil
}
