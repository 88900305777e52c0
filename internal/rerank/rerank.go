package rerank

import "context"

// Reranker scores query/passage pairs with a relevance model independent of
// the vector distance metric. Scores returns one score per text, higher is
// more relevant.
type Reranker interface {
	Scores(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Noop preserves the caller's ordering by scoring passages in descending
// input position. Used when no reranker model is configured; retrieval then
// degrades to plain vector ordering.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Scores(_ context.Context, _ string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i := range texts {
		scores[i] = float64(len(texts) - i)
	}
	return scores, nil
}
