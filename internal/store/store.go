package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docqa/internal/embeddings"
)

// DocumentStatus is the ingestion state machine. A document moves
// Pending -> Extracted -> Chunked -> Indexed, or to Failed at any stage.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusExtracted DocumentStatus = "extracted"
	StatusChunked   DocumentStatus = "chunked"
	StatusIndexed   DocumentStatus = "indexed"
	StatusFailed    DocumentStatus = "failed"
)

var (
	// ErrNotFound is returned for operations on an unknown filename or chunk.
	ErrNotFound = errors.New("not found")
	// ErrIndexInconsistent signals a vector entry without a matching chunk.
	// It should never occur if the atomic-commit discipline is followed.
	ErrIndexInconsistent = errors.New("index inconsistent with chunk store")
)

// Document is one ingested file. Stages records the state transitions the
// document went through, in order.
type Document struct {
	ID        uuid.UUID
	Filename  string
	Status    DocumentStatus
	PageCount int
	Stages    []string
	CreatedAt time.Time
}

// Chunk is the atomic unit of indexing and retrieval. Index is the position
// within the document; chunks of one document form a contiguous, gap-free
// sequence.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Filename   string
	PageNumber int
	Index      int
	Text       string
	TokenCount int
}

// DocumentInfo is the listing view of an indexed document.
type DocumentInfo struct {
	Filename   string
	ChunkCount int
	PageCount  int
	IndexedAt  time.Time
}

// Hit is a chunk returned from vector search with its similarity score.
type Hit struct {
	Chunk Chunk
	Score float32
}

// ChunkID derives a stable chunk identity from the document ID and the
// chunk's sequence index.
func ChunkID(documentID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(documentID, []byte(strconv.Itoa(index)))
}

// Store persists documents, chunks and their vectors as one unit. Every write
// presents an all-or-nothing view to concurrent readers: a searcher never
// observes a document half-inserted or half-removed.
type Store interface {
	// ReplaceDocument commits a fully embedded document. If a document with
	// the same filename exists it is replaced in the same atomic step.
	ReplaceDocument(ctx context.Context, doc Document, chunks []Chunk, vectors []embeddings.Vector) error
	// DeleteDocument removes a document with all its chunks and vectors.
	DeleteDocument(ctx context.Context, filename string) error
	// DeleteAll empties the store.
	DeleteAll(ctx context.Context) error
	// Document returns the indexed document for filename.
	Document(ctx context.Context, filename string) (Document, error)
	// ListDocuments returns all indexed documents sorted by filename.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
	// Search returns up to k chunks nearest to vec, optionally restricted to
	// one filename. An empty store yields an empty slice.
	Search(ctx context.Context, vec embeddings.Vector, k int, filename string) ([]Hit, error)
	// Neighbors returns the chunks within window positions of seq in the same
	// document, excluding seq itself, ordered by sequence index.
	Neighbors(ctx context.Context, documentID uuid.UUID, seq, window int) ([]Chunk, error)
	Close() error
}
