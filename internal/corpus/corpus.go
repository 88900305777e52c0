package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/chunker"
	"docqa/internal/embeddings"
	"docqa/internal/extract"
	"docqa/internal/store"
)

// Stage names the ingestion pipeline stage a failure is attributed to.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageCommit  Stage = "commit"
)

// IngestError wraps a stage-local ingestion failure. Prior corpus state is
// untouched when one is returned; the caller may retry the whole document.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest failed at %s stage: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// DocumentSummary reports the outcome of a successful ingestion.
type DocumentSummary struct {
	Filename string
	Pages    int
	Chunks   int
	Status   store.DocumentStatus
}

// Options tunes the ingestion pipeline.
type Options struct {
	Chunk            chunker.Options
	EmbedConcurrency int
}

// Corpus owns the document store and runs the ingestion pipeline:
// extract -> chunk -> embed -> atomic commit. Ingestions of the same filename
// serialize against each other; different filenames proceed concurrently.
type Corpus struct {
	log       *slog.Logger
	store     store.Store
	extractor extract.Extractor
	embedder  embeddings.Embedder
	opts      Options

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	ledgerMu sync.RWMutex
	ledger   map[string]store.DocumentStatus
}

func New(log *slog.Logger, st store.Store, ex extract.Extractor, em embeddings.Embedder, opts Options) *Corpus {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	return &Corpus{
		log:       log,
		store:     st,
		extractor: ex,
		embedder:  em,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
		ledger:    make(map[string]store.DocumentStatus),
	}
}

// Close releases the underlying store.
func (c *Corpus) Close() error {
	return c.store.Close()
}

// Ingest runs the full pipeline for one uploaded document. On success the
// document replaces any previous version with the same filename atomically;
// on failure nothing in the corpus changes.
func (c *Corpus) Ingest(ctx context.Context, data []byte, filename string) (DocumentSummary, error) {
	release := c.lockFilename(filename)
	defer release()

	docID := uuid.New()
	log := c.log.With("filename", filename, "document_id", docID)
	var stages []string
	advance := func(status store.DocumentStatus) {
		stages = append(stages, string(status))
		c.setStatus(filename, status)
	}

	advance(store.StatusPending)

	pages, err := c.extractor.Extract(data, filename)
	if err != nil {
		c.setStatus(filename, store.StatusFailed)
		log.Warn("extraction failed", "err", err)
		return DocumentSummary{}, &IngestError{Stage: StageExtract, Err: err}
	}
	advance(store.StatusExtracted)

	pieces := chunker.SplitPages(pages, c.opts.Chunk)
	if len(pieces) == 0 {
		c.setStatus(filename, store.StatusFailed)
		return DocumentSummary{}, &IngestError{Stage: StageChunk, Err: extract.ErrNoText}
	}
	chunks := make([]store.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.Chunk{
			ID:         store.ChunkID(docID, p.Index),
			DocumentID: docID,
			Filename:   filename,
			PageNumber: p.PageNumber,
			Index:      p.Index,
			Text:       p.Text,
			TokenCount: p.TokenCount,
		}
	}
	advance(store.StatusChunked)

	vectors, err := c.embedChunks(ctx, chunks)
	if err != nil {
		// No partial index state: nothing was committed yet.
		c.setStatus(filename, store.StatusFailed)
		log.Warn("embedding failed, document not committed", "err", err)
		return DocumentSummary{}, &IngestError{Stage: StageEmbed, Err: err}
	}

	doc := store.Document{
		ID:        docID,
		Filename:  filename,
		Status:    store.StatusIndexed,
		PageCount: len(pages),
		Stages:    append(stages, string(store.StatusIndexed)),
	}
	if err := c.store.ReplaceDocument(ctx, doc, chunks, vectors); err != nil {
		c.setStatus(filename, store.StatusFailed)
		return DocumentSummary{}, &IngestError{Stage: StageCommit, Err: err}
	}
	c.setStatus(filename, store.StatusIndexed)

	log.Info("document indexed", "pages", len(pages), "chunks", len(chunks))
	return DocumentSummary{
		Filename: filename,
		Pages:    len(pages),
		Chunks:   len(chunks),
		Status:   store.StatusIndexed,
	}, nil
}

// embedChunks computes one embedding per chunk with bounded parallelism.
// Any failure aborts the whole document.
func (c *Corpus) embedChunks(ctx context.Context, chunks []store.Chunk) ([]embeddings.Vector, error) {
	vectors := make([]embeddings.Vector, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.EmbedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := c.embedder.Embed(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Delete removes a document's chunks and vectors as one atomic unit.
func (c *Corpus) Delete(ctx context.Context, filename string) error {
	release := c.lockFilename(filename)
	defer release()

	if err := c.store.DeleteDocument(ctx, filename); err != nil {
		return err
	}
	c.clearStatus(filename)
	c.log.Info("document deleted", "filename", filename)
	return nil
}

// Clear empties the corpus.
func (c *Corpus) Clear(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	c.ledgerMu.Lock()
	c.ledger = make(map[string]store.DocumentStatus)
	c.ledgerMu.Unlock()
	c.log.Info("corpus cleared")
	return nil
}

// List returns the indexed documents.
func (c *Corpus) List(ctx context.Context) ([]store.DocumentInfo, error) {
	return c.store.ListDocuments(ctx)
}

// Search runs nearest-neighbor search over the committed corpus.
func (c *Corpus) Search(ctx context.Context, vec embeddings.Vector, k int, filename string) ([]store.Hit, error) {
	return c.store.Search(ctx, vec, k, filename)
}

// Neighbors returns sequence-adjacent chunks of the same document.
func (c *Corpus) Neighbors(ctx context.Context, documentID uuid.UUID, seq, window int) ([]store.Chunk, error) {
	return c.store.Neighbors(ctx, documentID, seq, window)
}

// Status reports the last observed ingestion state for filename, including
// in-flight and failed ingestions that the store never saw.
func (c *Corpus) Status(filename string) (store.DocumentStatus, bool) {
	c.ledgerMu.RLock()
	defer c.ledgerMu.RUnlock()
	status, ok := c.ledger[filename]
	return status, ok
}

func (c *Corpus) setStatus(filename string, status store.DocumentStatus) {
	c.ledgerMu.Lock()
	c.ledger[filename] = status
	c.ledgerMu.Unlock()
}

func (c *Corpus) clearStatus(filename string) {
	c.ledgerMu.Lock()
	delete(c.ledger, filename)
	c.ledgerMu.Unlock()
}

// lockFilename serializes writes to one filename. The per-name mutexes are
// few and small, so they are kept for the life of the corpus.
func (c *Corpus) lockFilename(filename string) func() {
	c.lockMu.Lock()
	m, ok := c.locks[filename]
	if !ok {
		m = &sync.Mutex{}
		c.locks[filename] = m
	}
	c.lockMu.Unlock()
	m.Lock()
	return m.Unlock
}
