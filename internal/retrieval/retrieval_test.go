package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/embeddings"
	"docqa/internal/rerank"
	"docqa/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func defaultOpts() Options {
	return Options{SearchK: 10, FinalK: 5, NeighborWindow: 1, ContextBudget: 1000}
}

// seedStore builds a memory store with one document of n chunks embedded on a
// line so that lower indexes are closer to the unit query vector {1, 0}.
func seedStore(t *testing.T, filename string, n int) (*store.MemoryStore, store.Document) {
	t.Helper()
	s, err := store.NewMemory(2)
	require.NoError(t, err)

	doc := store.Document{ID: uuid.New(), Filename: filename, Status: store.StatusIndexed, PageCount: 1}
	chunks := make([]store.Chunk, n)
	vectors := make([]embeddings.Vector, n)
	for i := 0; i < n; i++ {
		chunks[i] = store.Chunk{
			ID:         store.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Filename:   filename,
			PageNumber: i/4 + 1,
			Index:      i,
			Text:       filename + " text",
			TokenCount: 10,
		}
		vectors[i] = embeddings.Vector{1, float32(i) * 0.2}
	}
	require.NoError(t, s.ReplaceDocument(context.Background(), doc, chunks, vectors))
	return s, doc
}

func queryEmbedder(t *testing.T) *embeddings.MockEmbedder {
	t.Helper()
	e := &embeddings.MockEmbedder{}
	e.On("Embed", mock.Anything, mock.Anything).Return(embeddings.Vector{1, 0}, nil)
	return e
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	s, err := store.NewMemory(2)
	require.NoError(t, err)

	r := New(discardLogger(), s, queryEmbedder(t), rerank.NewNoop(), defaultOpts())
	res, err := r.Retrieve(context.Background(), "anything", "")
	require.NoError(t, err)
	require.True(t, res.Empty())
}

func TestRetrieveEmbeddingFailureSurfaced(t *testing.T) {
	s, _ := seedStore(t, "a.pdf", 4)
	e := &embeddings.MockEmbedder{}
	e.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("embed service down"))

	r := New(discardLogger(), s, e, rerank.NewNoop(), defaultOpts())
	_, err := r.Retrieve(context.Background(), "q", "")
	require.Error(t, err)
}

func TestRetrieveExpandsNeighborsAndDeduplicates(t *testing.T) {
	s, doc := seedStore(t, "a.pdf", 6)

	opts := defaultOpts()
	opts.SearchK = 2 // top hits are chunks 0 and 1; each pulls its neighbors
	r := New(discardLogger(), s, queryEmbedder(t), rerank.NewNoop(), opts)

	res, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)

	seen := make(map[uuid.UUID]int)
	for _, sc := range res.Chunks {
		seen[sc.Chunk.ID]++
		require.Equal(t, doc.ID, sc.Chunk.DocumentID)
	}
	for id, count := range seen {
		require.Equalf(t, 1, count, "chunk %s appeared %d times", id, count)
	}
	// Chunk 1 is both a direct hit and a neighbor of 0; chunk 2 arrives only
	// as a neighbor of 1.
	require.Contains(t, seen, store.ChunkID(doc.ID, 2))
}

func TestRetrieveNeighborsStayInDocument(t *testing.T) {
	sA, docA := seedStore(t, "a.pdf", 3)
	// Add a second document to the same store.
	docB := store.Document{ID: uuid.New(), Filename: "b.pdf", Status: store.StatusIndexed, PageCount: 1}
	chunks := []store.Chunk{{
		ID: store.ChunkID(docB.ID, 0), DocumentID: docB.ID, Filename: "b.pdf",
		PageNumber: 1, Index: 0, Text: "b text", TokenCount: 5,
	}}
	require.NoError(t, sA.ReplaceDocument(context.Background(), docB, chunks, []embeddings.Vector{{0, 1}}))

	opts := defaultOpts()
	opts.SearchK = 1
	opts.NeighborWindow = 5
	r := New(discardLogger(), sA, queryEmbedder(t), rerank.NewNoop(), opts)

	res, err := r.Retrieve(context.Background(), "q", "a.pdf")
	require.NoError(t, err)
	for _, sc := range res.Chunks {
		require.Equal(t, docA.ID, sc.Chunk.DocumentID)
	}
}

func TestRetrieveRerankReordersWithTieBreak(t *testing.T) {
	s, doc := seedStore(t, "a.pdf", 3)

	opts := defaultOpts()
	opts.NeighborWindow = 0
	opts.SearchK = 3

	// Reranker inverts the vector order and ties the last two.
	rr := &rerank.MockReranker{}
	rr.On("Scores", mock.Anything, "q", mock.Anything).Return([]float64{0.1, 0.5, 0.5}, nil)

	r := New(discardLogger(), s, queryEmbedder(t), rr, opts)
	res, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)

	// Ties resolve by original vector rank: candidate 1 before candidate 2.
	require.Equal(t, store.ChunkID(doc.ID, 1), res.Chunks[0].Chunk.ID)
	require.Equal(t, store.ChunkID(doc.ID, 2), res.Chunks[1].Chunk.ID)
	require.Equal(t, store.ChunkID(doc.ID, 0), res.Chunks[2].Chunk.ID)
}

func TestRetrieveRerankFailureFallsBackToVectorOrder(t *testing.T) {
	s, doc := seedStore(t, "a.pdf", 3)

	opts := defaultOpts()
	opts.NeighborWindow = 0
	rr := &rerank.MockReranker{}
	rr.On("Scores", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("model down"))

	r := New(discardLogger(), s, queryEmbedder(t), rr, opts)
	res, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.Chunks)
	require.Equal(t, store.ChunkID(doc.ID, 0), res.Chunks[0].Chunk.ID)
}

func TestRetrieveTruncatesToBudget(t *testing.T) {
	s, _ := seedStore(t, "a.pdf", 8)

	opts := defaultOpts()
	opts.NeighborWindow = 0
	opts.FinalK = 8
	opts.ContextBudget = 25 // chunks are 10 tokens each: room for 2

	r := New(discardLogger(), s, queryEmbedder(t), rerank.NewNoop(), opts)
	res, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	require.LessOrEqual(t, res.TotalTokens, opts.ContextBudget)
}

func TestRetrieveCapsAtFinalK(t *testing.T) {
	s, _ := seedStore(t, "a.pdf", 8)

	opts := defaultOpts()
	opts.NeighborWindow = 0
	opts.FinalK = 3

	r := New(discardLogger(), s, queryEmbedder(t), rerank.NewNoop(), opts)
	res, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
}

func TestRetrieveDeterministic(t *testing.T) {
	s, _ := seedStore(t, "a.pdf", 6)
	r := New(discardLogger(), s, queryEmbedder(t), rerank.NewNoop(), defaultOpts())

	first, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	require.Equal(t, first, second)
}
