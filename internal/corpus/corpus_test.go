package corpus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/embeddings"
	"docqa/internal/extract"
	"docqa/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// hashEmbedder maps text deterministically onto a small vector so that
// identical text embeds identically and self-retrieval works.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) (embeddings.Vector, error) {
	var a, b float32
	for i, r := range text {
		if i%2 == 0 {
			a += float32(r % 97)
		} else {
			b += float32(r % 89)
		}
	}
	return embeddings.Vector{a + 1, b + 1}, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	out := make([]embeddings.Vector, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestCorpus(t *testing.T) *Corpus {
	t.Helper()
	st, err := store.NewMemory(2)
	require.NoError(t, err)
	return New(discardLogger(), st, extract.NewPDFExtractor(), hashEmbedder{}, Options{
		Chunk:            chunker.Options{Size: 80, Overlap: 20},
		EmbedConcurrency: 2,
	})
}

func TestIngestListAndSelfRetrieval(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	text := strings.Repeat("the refund window is thirty days from purchase. ", 10)
	sum, err := c.Ingest(ctx, []byte(text), "policy.txt")
	require.NoError(t, err)
	require.Equal(t, store.StatusIndexed, sum.Status)
	require.Greater(t, sum.Chunks, 0)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, sum.Chunks, infos[0].ChunkCount)

	// Every committed chunk is retrievable by a query embedding close to its
	// own: searching with the chunk's exact embedding must return it first.
	hits, err := c.Search(ctx, mustEmbed(t, hashEmbedder{}, text[:80]), sum.Chunks, "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	status, ok := c.Status("policy.txt")
	require.True(t, ok)
	require.Equal(t, store.StatusIndexed, status)
}

func mustEmbed(t *testing.T, e embeddings.Embedder, text string) embeddings.Vector {
	t.Helper()
	v, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}

func TestIngestExtractionError(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	_, err := c.Ingest(ctx, []byte(""), "empty.txt")
	var ingErr *IngestError
	require.ErrorAs(t, err, &ingErr)
	require.Equal(t, StageExtract, ingErr.Stage)
	require.True(t, errors.Is(err, extract.ErrNoText))

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	status, ok := c.Status("empty.txt")
	require.True(t, ok)
	require.Equal(t, store.StatusFailed, status)
}

func TestIngestEmbeddingErrorLeavesCorpusUntouched(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewMemory(2)
	require.NoError(t, err)

	embedder := &embeddings.MockEmbedder{}
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	c := New(discardLogger(), st, extract.NewPDFExtractor(), embedder, Options{
		Chunk:            chunker.Options{Size: 50, Overlap: 10},
		EmbedConcurrency: 2,
	})

	_, err = c.Ingest(ctx, []byte(strings.Repeat("some document text ", 20)), "doc.txt")
	var ingErr *IngestError
	require.ErrorAs(t, err, &ingErr)
	require.Equal(t, StageEmbed, ingErr.Stage)

	// No partial state: nothing committed, nothing searchable.
	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	status, ok := c.Status("doc.txt")
	require.True(t, ok)
	require.Equal(t, store.StatusFailed, status)
}

func TestIngestEmbeddingErrorDoesNotTouchOtherDocuments(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	_, err := c.Ingest(ctx, []byte(strings.Repeat("first document text ", 20)), "first.txt")
	require.NoError(t, err)

	// Second ingest fails at extraction; first document must stay queryable.
	_, err = c.Ingest(ctx, []byte{0xff, 0xfe}, "second.txt")
	require.Error(t, err)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "first.txt", infos[0].Filename)
}

func TestReingestReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	text := strings.Repeat("original content about refunds ", 15)
	sumV1, err := c.Ingest(ctx, []byte(text), "policy.txt")
	require.NoError(t, err)

	// Byte-identical input yields the same chunk count (idempotence).
	sumV2, err := c.Ingest(ctx, []byte(text), "policy.txt")
	require.NoError(t, err)
	require.Equal(t, sumV1.Chunks, sumV2.Chunks)

	// Different content replaces rather than accumulates.
	sumV3, err := c.Ingest(ctx, []byte("short replacement"), "policy.txt")
	require.NoError(t, err)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, sumV3.Chunks, infos[0].ChunkCount)
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	_, err := c.Ingest(ctx, []byte(strings.Repeat("alpha text ", 20)), "a.txt")
	require.NoError(t, err)
	_, err = c.Ingest(ctx, []byte(strings.Repeat("beta text ", 20)), "b.txt")
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "a.txt"))
	err = c.Delete(ctx, "a.txt")
	require.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, c.Clear(ctx))
	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	hits, err := c.Search(ctx, embeddings.Vector{1, 1}, 10, "")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestIngestRecordsStageHistory(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	_, err := c.Ingest(ctx, []byte(strings.Repeat("stage history text ", 20)), "doc.txt")
	require.NoError(t, err)

	st := c.store
	doc, err := st.Document(ctx, "doc.txt")
	require.NoError(t, err)
	require.Equal(t, []string{"pending", "extracted", "chunked", "indexed"}, doc.Stages)
}
