package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/embeddings"
	"docqa/internal/vectorindex"
)

// MemoryStore keeps chunks and vectors in process memory. A single RWMutex
// guards the chunk maps and the vector index together, so readers always see
// a consistent pre- or post-write view.
type MemoryStore struct {
	mu     sync.RWMutex
	index  *vectorindex.Index
	docs   map[string]Document   // by filename
	chunks map[uuid.UUID]Chunk   // by chunk ID
	byDoc  map[uuid.UUID][]Chunk // sequence-ordered chunks per document
}

func NewMemory(dim int) (*MemoryStore, error) {
	ix, err := vectorindex.New(dim)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		index:  ix,
		docs:   make(map[string]Document),
		chunks: make(map[uuid.UUID]Chunk),
		byDoc:  make(map[uuid.UUID][]Chunk),
	}, nil
}

func (s *MemoryStore) ReplaceDocument(_ context.Context, doc Document, chunks []Chunk, vectors []embeddings.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("chunk sequence has a gap at position %d (index %d)", i, c.Index)
		}
	}

	chunkIDs := make([]uuid.UUID, len(chunks))
	metas := make([]vectorindex.Metadata, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
		metas[i] = vectorindex.Metadata{Filename: c.Filename, PageNumber: c.PageNumber}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Insert the new entries before touching the old version: a failed batch
	// (dimension mismatch) must leave the previously committed document
	// intact.
	if err := s.index.InsertBatch(doc.ID, chunkIDs, vectors, metas); err != nil {
		return err
	}
	if old, ok := s.docs[doc.Filename]; ok && old.ID != doc.ID {
		s.dropDocumentLocked(old)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	s.docs[doc.Filename] = doc
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	s.byDoc[doc.ID] = ordered
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[filename]
	if !ok {
		return fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}
	s.dropDocumentLocked(doc)
	return nil
}

func (s *MemoryStore) dropDocumentLocked(doc Document) {
	s.index.RemoveDocument(doc.ID)
	for _, c := range s.byDoc[doc.ID] {
		delete(s.chunks, c.ID)
	}
	delete(s.byDoc, doc.ID)
	delete(s.docs, doc.Filename)
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Clear()
	s.docs = make(map[string]Document)
	s.chunks = make(map[uuid.UUID]Chunk)
	s.byDoc = make(map[uuid.UUID][]Chunk)
	return nil
}

func (s *MemoryStore) Document(_ context.Context, filename string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[filename]
	if !ok {
		return Document{}, fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentInfo, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, DocumentInfo{
			Filename:   doc.Filename,
			ChunkCount: len(s.byDoc[doc.ID]),
			PageCount:  doc.PageCount,
			IndexedAt:  doc.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (s *MemoryStore) Search(_ context.Context, vec embeddings.Vector, k int, filename string) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.index.Search(vec, k, filename)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		chunk, ok := s.chunks[h.ChunkID]
		if !ok {
			return nil, fmt.Errorf("chunk %s: %w", h.ChunkID, ErrIndexInconsistent)
		}
		hits = append(hits, Hit{Chunk: chunk, Score: h.Score})
	}
	return hits, nil
}

func (s *MemoryStore) Neighbors(_ context.Context, documentID uuid.UUID, seq, window int) ([]Chunk, error) {
	if window <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.byDoc[documentID]
	var out []Chunk
	for _, c := range ordered {
		if c.Index == seq {
			continue
		}
		if c.Index >= seq-window && c.Index <= seq+window {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
