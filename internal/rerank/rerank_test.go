package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopPreservesOrder(t *testing.T) {
	scores, err := NewNoop().Scores(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	require.Greater(t, scores[0], scores[1])
	require.Greater(t, scores[1], scores[2])
}

func TestHTTPReranker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "refund window", req.Query)
		// Return results out of order to check index mapping.
		_ = json.NewEncoder(w).Encode([]rerankResult{
			{Index: 1, Score: 0.9},
			{Index: 0, Score: 0.2},
		})
	}))
	defer srv.Close()

	r, err := NewHTTP(srv.URL, 0)
	require.NoError(t, err)
	scores, err := r.Scores(context.Background(), "refund window", []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, []float64{0.2, 0.9}, scores)
}

func TestHTTPRerankerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, err := NewHTTP(srv.URL, 0)
	require.NoError(t, err)
	_, err = r.Scores(context.Background(), "q", []string{"a"})
	require.Error(t, err)
}

func TestHTTPRerankerScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}})
	}))
	defer srv.Close()

	r, err := NewHTTP(srv.URL, 0)
	require.NoError(t, err)
	_, err = r.Scores(context.Background(), "q", []string{"a", "b"})
	require.Error(t, err)
}
