package extract

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnreadable marks input that is not a valid document of the expected format.
	ErrUnreadable = errors.New("document is not readable")
	// ErrNoText marks a document that yielded zero extractable text.
	ErrNoText = errors.New("document contains no extractable text")
	// ErrUnsupportedType marks a file extension we do not handle.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Page is one page of extracted document text.
type Page struct {
	Number int
	Text   string
}

// Extractor pulls per-page text out of an uploaded document.
type Extractor interface {
	Extract(data []byte, filename string) ([]Page, error)
}

// Supported reports whether filename has an extension we can extract.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}
