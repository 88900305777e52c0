package chunker

import (
	"strings"

	"docqa/internal/extract"
)

// Options controls how page text is chunked. Size and Overlap are measured in
// runes so boundaries can never land inside a multi-byte codepoint.
type Options struct {
	Size    int
	Overlap int
}

// Chunk is one bounded segment of a document's text. Index is the position
// within the whole document, contiguous across page boundaries.
type Chunk struct {
	Index      int
	PageNumber int
	Text       string
	TokenCount int
}

const defaultSize = 400

// normalize clamps options so the window always makes forward progress.
func (o Options) normalize() Options {
	if o.Size <= 0 {
		o.Size = defaultSize
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = 0
	}
	return o
}

// SplitPages chunks each page with a sliding rune window and assigns
// document-wide sequence indexes. The same input always produces the same
// boundaries.
func SplitPages(pages []extract.Page, opts Options) []Chunk {
	opts = opts.normalize()

	var chunks []Chunk
	for _, page := range pages {
		for _, text := range splitText(page.Text, opts) {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				PageNumber: page.Number,
				Text:       text,
				TokenCount: CountTokens(text),
			})
		}
	}
	return chunks
}

// splitText slides a window of opts.Size runes with opts.Overlap runes shared
// between consecutive chunks.
func splitText(text string, opts Options) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := opts.Size - opts.Overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}
		segment := strings.TrimSpace(string(runes[start:end]))
		if segment != "" {
			out = append(out, segment)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// CountTokens approximates token count by whitespace-delimited words to avoid
// a tokenizer dependency.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
