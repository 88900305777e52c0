package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"docqa/internal/llm"
	"docqa/internal/retrieval"
)

// ErrGeneration marks a generation-service failure (timeout, rate limit,
// malformed response). The answer is omitted, never fabricated.
var ErrGeneration = errors.New("generation service failed")

// Attribution points at a source location actually used in the answer.
type Attribution struct {
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
}

// Answer is the orchestrator's result. Grounded is false when the answer was
// produced without retrieval (small talk, or nothing relevant found).
type Answer struct {
	Text         string        `json:"text"`
	Attributions []Attribution `json:"attributions"`
	Grounded     bool          `json:"grounded"`
}

// Request carries one question. SessionID is an opaque pass-through for
// external chat-history collaborators; the core never reads its storage.
type Request struct {
	Query          string
	DocumentFilter string
	SessionID      string
}

// Retriever is the retrieval pipeline surface the orchestrator depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query, documentFilter string) (retrieval.Result, error)
}

// Orchestrator classifies intent, retrieves grounding material, and invokes
// the generation service.
type Orchestrator struct {
	log       *slog.Logger
	retriever Retriever
	llm       llm.Client
}

func New(log *slog.Logger, r Retriever, client llm.Client) *Orchestrator {
	return &Orchestrator{log: log, retriever: r, llm: client}
}

// Answer handles one query end to end.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (Answer, error) {
	if Classify(req.Query) == IntentConversational {
		o.log.Debug("conversational query", "query", req.Query)
		return Answer{
			Text:         conversationalResponse(req.Query),
			Attributions: []Attribution{},
			Grounded:     false,
		}, nil
	}

	res, err := o.retriever.Retrieve(ctx, req.Query, req.DocumentFilter)
	if err != nil {
		return Answer{}, err
	}
	if res.Empty() {
		return Answer{
			Text:         noInfoResponse(req.DocumentFilter),
			Attributions: []Attribution{},
			Grounded:     false,
		}, nil
	}

	contextBlock, attributions := buildContext(res.Chunks)
	text, err := o.llm.Complete(ctx, req.Query, contextBlock)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	o.log.Info("answered query",
		"chunks", len(res.Chunks),
		"tokens", res.TotalTokens,
		"sources", len(attributions),
	)
	return Answer{Text: text, Attributions: attributions, Grounded: true}, nil
}

func noInfoResponse(documentFilter string) string {
	if documentFilter != "" {
		return fmt.Sprintf("No relevant information was found in %q for this question.", documentFilter)
	}
	return "No relevant information about this was found in the uploaded documents."
}

// buildContext groups chunks by source page, orders groups by filename and
// page, and tags each group so the model sees where its material comes from.
// The returned attributions list the sources in the same order.
func buildContext(chunks []retrieval.ScoredChunk) (string, []Attribution) {
	type group struct {
		filename string
		page     int
		texts    []string
	}
	index := make(map[Attribution]int)
	var groups []group
	for _, sc := range chunks {
		key := Attribution{Filename: sc.Chunk.Filename, PageNumber: sc.Chunk.PageNumber}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, group{filename: key.Filename, page: key.PageNumber})
		}
		groups[pos].texts = append(groups[pos].texts, sc.Chunk.Text)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].filename != groups[j].filename {
			return groups[i].filename < groups[j].filename
		}
		return groups[i].page < groups[j].page
	})

	var b strings.Builder
	attributions := make([]Attribution, 0, len(groups))
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[source: %s, page %d]\n", g.filename, g.page)
		b.WriteString(strings.Join(g.texts, " "))
		attributions = append(attributions, Attribution{Filename: g.filename, PageNumber: g.page})
	}
	return b.String(), attributions
}
