package readers

import (
	"fmt"
	"io"

	"code.sajari.com/docconv/v2"
)

// Extractor pulls plain text out of one file format.
type Extractor interface {
	Format() Format
	Extract(r io.Reader) (string, error)
}

// PdfExtractor needs the pdftotext binary from poppler at runtime.
type PdfExtractor struct{}

func (PdfExtractor) Format() Format { return PDF }

func (PdfExtractor) Extract(r io.Reader) (string, error) {
	body, _, err := docconv.ConvertPDF(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf document: %w", err)
	}

	return body, nil
}

type DocxExtractor struct{}

func (DocxExtractor) Format() Format { return Docx }

func (DocxExtractor) Extract(r io.Reader) (string, error) {
	body, _, err := docconv.ConvertDocx(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx document: %w", err)
	}

	return body, nil
}

type PptxExtractor struct{}

func (PptxExtractor) Format() Format { return Pptx }

func (PptxExtractor) Extract(r io.Reader) (string, error) {
	body, _, err := docconv.ConvertPptx(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pptx document: %w", err)
	}

	return body, nil
}

type PlainTextExtractor struct{}

func (PlainTextExtractor) Format() Format { return PlainText }

func (PlainTextExtractor) Extract(r io.Reader) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	return string(buf), nil
}
