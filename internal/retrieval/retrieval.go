package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"docqa/internal/embeddings"
	"docqa/internal/rerank"
	"docqa/internal/store"
)

// Searcher is the corpus surface the retrieval pipeline reads from.
type Searcher interface {
	Search(ctx context.Context, vec embeddings.Vector, k int, filename string) ([]store.Hit, error)
	Neighbors(ctx context.Context, documentID uuid.UUID, seq, window int) ([]store.Chunk, error)
}

// Options tunes the retrieval pipeline. SearchK is the initial candidate
// count handed to the reranker; FinalK and ContextBudget bound the output.
type Options struct {
	SearchK        int
	FinalK         int
	NeighborWindow int
	ContextBudget  int
}

// ScoredChunk is one retrieved chunk with its rerank relevance and the
// vector similarity it was found with.
type ScoredChunk struct {
	Chunk       store.Chunk
	Score       float64
	VectorScore float32
}

// Result is an ordered set of chunks, descending by relevance, whose combined
// token count fits the context budget.
type Result struct {
	Chunks      []ScoredChunk
	TotalTokens int
}

// Empty reports whether retrieval found no grounding material.
func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// Retriever embeds a query, searches the vector index, expands candidates
// with their sequence neighbors, reranks, and truncates to budget. The same
// query against an unchanged corpus yields the same result.
type Retriever struct {
	log      *slog.Logger
	searcher Searcher
	embedder embeddings.Embedder
	reranker rerank.Reranker
	opts     Options
}

func New(log *slog.Logger, s Searcher, e embeddings.Embedder, r rerank.Reranker, opts Options) *Retriever {
	return &Retriever{log: log, searcher: s, embedder: e, reranker: r, opts: opts}
}

type candidate struct {
	chunk       store.Chunk
	vectorScore float32
	vectorRank  int
}

// Retrieve runs the full pipeline. An empty corpus returns an empty Result,
// not an error; an embedding or search failure is surfaced to the caller.
func (r *Retriever) Retrieve(ctx context.Context, query, documentFilter string) (Result, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.searcher.Search(ctx, vec, r.opts.SearchK, documentFilter)
	if err != nil {
		return Result{}, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return Result{}, nil
	}

	candidates, err := r.expand(ctx, hits)
	if err != nil {
		return Result{}, err
	}

	ranked := r.rerankCandidates(ctx, query, candidates)
	return r.truncate(ranked), nil
}

// expand adds each hit's sequence neighbors, deduplicating by chunk ID. A
// chunk seen as both a direct hit and a neighbor keeps its best score and
// best vector rank.
func (r *Retriever) expand(ctx context.Context, hits []store.Hit) ([]candidate, error) {
	byID := make(map[uuid.UUID]int, len(hits))
	var out []candidate

	add := func(chunk store.Chunk, score float32) {
		if pos, ok := byID[chunk.ID]; ok {
			if score > out[pos].vectorScore {
				out[pos].vectorScore = score
			}
			return
		}
		byID[chunk.ID] = len(out)
		out = append(out, candidate{chunk: chunk, vectorScore: score, vectorRank: len(out)})
	}

	for _, h := range hits {
		add(h.Chunk, h.Score)
	}
	for _, h := range hits {
		neighbors, err := r.searcher.Neighbors(ctx, h.Chunk.DocumentID, h.Chunk.Index, r.opts.NeighborWindow)
		if err != nil {
			return nil, fmt.Errorf("neighbor expansion failed: %w", err)
		}
		for _, n := range neighbors {
			// Neighbors ride along with the hit that pulled them in.
			add(n, h.Score)
		}
	}
	return out, nil
}

// rerankCandidates reorders candidates by the relevance model, tie-breaking
// by original vector rank. If the rerank service fails the vector ordering
// stands, with a warning.
func (r *Retriever) rerankCandidates(ctx context.Context, query string, candidates []candidate) []ScoredChunk {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.chunk.Text
	}

	scores, err := r.reranker.Scores(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		r.log.Warn("rerank unavailable, keeping vector order", "err", err)
		scores = make([]float64, len(candidates))
		for i := range scores {
			scores[i] = float64(len(candidates) - i)
		}
	}

	out := make([]ScoredChunk, len(candidates))
	ranks := make(map[uuid.UUID]int, len(candidates))
	for i, c := range candidates {
		out[i] = ScoredChunk{Chunk: c.chunk, Score: scores[i], VectorScore: c.vectorScore}
		ranks[c.chunk.ID] = c.vectorRank
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return ranks[out[i].Chunk.ID] < ranks[out[j].Chunk.ID]
	})
	return out
}

// truncate keeps the top chunks whose combined token count fits the context
// budget, never splitting a chunk, capped at FinalK.
func (r *Retriever) truncate(ranked []ScoredChunk) Result {
	var res Result
	for _, sc := range ranked {
		if len(res.Chunks) >= r.opts.FinalK {
			break
		}
		if res.TotalTokens+sc.Chunk.TokenCount > r.opts.ContextBudget {
			break
		}
		res.Chunks = append(res.Chunks, sc)
		res.TotalTokens += sc.Chunk.TokenCount
	}
	return res
}
