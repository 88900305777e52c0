package extract

import (
	"errors"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := NewPDFExtractor()

	pages, err := e.Extract([]byte("hello world"), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[0].Text != "hello world" {
		t.Errorf("unexpected page: %+v", pages[0])
	}
}

func TestExtractPlainTextRoundTripsUnicode(t *testing.T) {
	e := NewPDFExtractor()
	// Vietnamese and CJK content must survive extraction byte for byte.
	text := "Quyết định số 123/QĐ-UBND về việc hoàn thuế (退款政策)"

	pages, err := e.Extract([]byte(text), "policy.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages[0].Text != text {
		t.Errorf("unicode did not round-trip:\ngot  %q\nwant %q", pages[0].Text, text)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract([]byte("   \n\t  "), "empty.txt")
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestExtractInvalidUTF8(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract([]byte{0xff, 0xfe, 0xfd}, "garbage.txt")
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("expected ErrUnreadable, got %v", err)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract([]byte("definitely not a pdf"), "broken.pdf")
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("expected ErrUnreadable, got %v", err)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract([]byte("col1,col2"), "data.csv")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"report.pdf", true},
		{"REPORT.PDF", true},
		{"notes.txt", true},
		{"data.csv", false},
		{"archive.zip", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.filename); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
