package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPReranker calls a cross-encoder inference server speaking the
// text-embeddings-inference rerank protocol (e.g. a hosted bge-reranker).
type HTTPReranker struct {
	url    string
	client *http.Client
}

const defaultRerankTimeout = 15 * time.Second

func NewHTTP(url string, timeout time.Duration) (*HTTPReranker, error) {
	if url == "" {
		return nil, fmt.Errorf("rerank url required")
	}
	if timeout <= 0 {
		timeout = defaultRerankTimeout
	}
	return &HTTPReranker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *HTTPReranker) Scores(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, msg)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("rerank service returned %d scores for %d texts", len(results), len(texts))
	}

	scores := make([]float64, len(texts))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, fmt.Errorf("rerank service returned out-of-range index %d", res.Index)
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}
