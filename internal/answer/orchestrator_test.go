package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/llm"
	"docqa/internal/retrieval"
	"docqa/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubRetriever struct {
	result retrieval.Result
	err    error
}

func (s stubRetriever) Retrieve(context.Context, string, string) (retrieval.Result, error) {
	return s.result, s.err
}

func scored(filename string, page, seq int, text string) retrieval.ScoredChunk {
	return retrieval.ScoredChunk{
		Chunk: store.Chunk{
			Filename:   filename,
			PageNumber: page,
			Index:      seq,
			Text:       text,
			TokenCount: len(strings.Fields(text)),
		},
	}
}

func TestAnswerConversational(t *testing.T) {
	client := &llm.MockClient{}
	o := New(discardLogger(), stubRetriever{}, client)

	ans, err := o.Answer(context.Background(), Request{Query: "hello"})
	require.NoError(t, err)
	require.False(t, ans.Grounded)
	require.NotEmpty(t, ans.Text)
	require.Empty(t, ans.Attributions)
	// Intent classification never reaches the generation service.
	client.AssertNotCalled(t, "Complete")
}

func TestAnswerEmptyCorpus(t *testing.T) {
	client := &llm.MockClient{}
	o := New(discardLogger(), stubRetriever{}, client)

	ans, err := o.Answer(context.Background(), Request{Query: "what is the refund window?"})
	require.NoError(t, err)
	require.False(t, ans.Grounded)
	require.Contains(t, ans.Text, "No relevant information")
	require.Empty(t, ans.Attributions)
	client.AssertNotCalled(t, "Complete")
}

func TestAnswerGroundedWithAttributions(t *testing.T) {
	result := retrieval.Result{Chunks: []retrieval.ScoredChunk{
		scored("policy.pdf", 2, 7, "refunds are accepted within thirty days"),
		scored("policy.pdf", 2, 8, "refunds require proof of purchase"),
		scored("policy.pdf", 1, 1, "this policy covers all retail purchases"),
	}}

	client := &llm.MockClient{}
	client.On("Complete", mock.Anything, "what is the refund window?", mock.MatchedBy(func(ctx string) bool {
		return strings.Contains(ctx, "policy.pdf") && strings.Contains(ctx, "thirty days")
	})).Return("The refund window is thirty days.", nil)

	o := New(discardLogger(), stubRetriever{result: result}, client)
	ans, err := o.Answer(context.Background(), Request{Query: "what is the refund window?"})
	require.NoError(t, err)
	require.True(t, ans.Grounded)
	require.Equal(t, "The refund window is thirty days.", ans.Text)
	// One attribution per source page, ordered by filename then page.
	require.Equal(t, []Attribution{
		{Filename: "policy.pdf", PageNumber: 1},
		{Filename: "policy.pdf", PageNumber: 2},
	}, ans.Attributions)
	client.AssertExpectations(t)
}

func TestAnswerGenerationFailureSurfaced(t *testing.T) {
	result := retrieval.Result{Chunks: []retrieval.ScoredChunk{
		scored("policy.pdf", 1, 0, "some grounding text"),
	}}
	client := &llm.MockClient{}
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

	o := New(discardLogger(), stubRetriever{result: result}, client)
	_, err := o.Answer(context.Background(), Request{Query: "grounded question"})
	require.True(t, errors.Is(err, ErrGeneration))
}

func TestAnswerRetrievalFailureSurfaced(t *testing.T) {
	client := &llm.MockClient{}
	o := New(discardLogger(), stubRetriever{err: errors.New("embed service down")}, client)

	_, err := o.Answer(context.Background(), Request{Query: "grounded question"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrGeneration))
}

func TestAnswerFilteredNoInfoMentionsFile(t *testing.T) {
	o := New(discardLogger(), stubRetriever{}, &llm.MockClient{})

	ans, err := o.Answer(context.Background(), Request{
		Query:          "what is the refund window?",
		DocumentFilter: "policy.pdf",
	})
	require.NoError(t, err)
	require.False(t, ans.Grounded)
	require.Contains(t, ans.Text, "policy.pdf")
}

func TestBuildContextGroupsByPage(t *testing.T) {
	block, attrs := buildContext([]retrieval.ScoredChunk{
		scored("b.pdf", 1, 0, "beta one"),
		scored("a.pdf", 3, 5, "alpha three"),
		scored("a.pdf", 3, 6, "alpha three more"),
	})
	require.Equal(t, []Attribution{
		{Filename: "a.pdf", PageNumber: 3},
		{Filename: "b.pdf", PageNumber: 1},
	}, attrs)
	require.Less(t, strings.Index(block, "a.pdf"), strings.Index(block, "b.pdf"))
	require.Contains(t, block, "alpha three alpha three more")
}
