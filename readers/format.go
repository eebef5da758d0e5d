package readers

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format tags the extraction routine used for a file.
type Format string

const (
	PDF       Format = "pdf"
	Docx      Format = "docx"
	Pptx      Format = "pptx"
	PlainText Format = "plain_text"
)

var extFormats = map[string]Format{
	".pdf":  PDF,
	".docx": Docx,
	".pptx": Pptx,
	".txt":  PlainText,
	".text": PlainText,
	".md":   PlainText,
}

var mimeFormats = map[string]Format{
	"application/pdf": PDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   Docx,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": Pptx,
	"text/plain": PlainText,
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := extFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	return f, nil
}

// FormatFromMime picks the format from a MIME type; parameters such as
// charset are ignored.
func FormatFromMime(mimeType string) (Format, error) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	f, ok := mimeFormats[mt]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt)
	}

	return f, nil
}
