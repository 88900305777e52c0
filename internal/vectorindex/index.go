package vectorindex

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docqa/internal/embeddings"
)

// ErrDimensionMismatch is returned when a vector does not match the dimension
// the index was opened with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Metadata carries the attribution fields stored alongside each vector.
type Metadata struct {
	Filename   string
	PageNumber int
}

// Hit is a single nearest-neighbor result, score descending by cosine
// similarity.
type Hit struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Score      float32
	Metadata   Metadata
}

type entry struct {
	chunkID    uuid.UUID
	documentID uuid.UUID
	vector     embeddings.Vector
	meta       Metadata
}

// Index is an in-memory brute-force cosine index. Reads run concurrently;
// inserts and removals are atomic with respect to searches.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
}

// New creates an index with a fixed vector dimension.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &Index{dim: dim}, nil
}

// Insert adds one vector entry. The dimension must match the index dimension.
func (ix *Index) Insert(chunkID, documentID uuid.UUID, vec embeddings.Vector, meta Metadata) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, entry{chunkID: chunkID, documentID: documentID, vector: vec, meta: meta})
	return nil
}

// InsertBatch adds all entries under a single lock so concurrent searches see
// either none or all of them.
func (ix *Index) InsertBatch(documentID uuid.UUID, chunkIDs []uuid.UUID, vecs []embeddings.Vector, metas []Metadata) error {
	if len(chunkIDs) != len(vecs) || len(vecs) != len(metas) {
		return fmt.Errorf("mismatched batch lengths: %d ids, %d vectors, %d metadata", len(chunkIDs), len(vecs), len(metas))
	}
	for _, v := range vecs {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(v), ix.dim)
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := range chunkIDs {
		ix.entries = append(ix.entries, entry{chunkID: chunkIDs[i], documentID: documentID, vector: vecs[i], meta: metas[i]})
	}
	return nil
}

// RemoveDocument drops every entry belonging to documentID in one step.
// Returns the number of entries removed.
func (ix *Index) RemoveDocument(documentID uuid.UUID) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.documentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ix.entries = kept
	return removed
}

// Search returns up to k nearest entries by cosine similarity, optionally
// restricted to a single filename. An empty index yields an empty slice.
func (ix *Index) Search(query embeddings.Vector, k int, filename string) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index holds %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		if filename != "" && e.meta.Filename != filename {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:    e.chunkID,
			DocumentID: e.documentID,
			Score:      embeddings.Cosine(query, e.vector),
			Metadata:   e.meta,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Clear removes every entry.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
}
