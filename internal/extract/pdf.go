package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts text page by page. Plain-text files are treated as a
// single page so the rest of the pipeline sees one shape of input.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(data []byte, filename string) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".txt":
		return extractPlainText(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}
}

func extractPDF(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var pages []Page
	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: pageNum, Text: text})
	}
	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

func extractPlainText(data []byte) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrUnreadable)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrNoText
	}
	return []Page{{Number: 1, Text: text}}, nil
}
