package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"docqa/internal/embeddings"
)

// PostgresStore persists chunks and vectors in Postgres with the pgvector
// extension. Transactions give readers the same all-or-nothing view the
// memory store provides with its lock.
type PostgresStore struct {
	db  *sql.DB
	dim int
}

func NewPostgres(dsn string, dim int) (*PostgresStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db, dim: dim}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock prevents concurrent migrations from multiple replicas.
	const lockID = 824461973

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another replica is migrating; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			status TEXT,
			pages INT,
			stages TEXT[],
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			ord INT,
			page INT,
			text TEXT,
			token_count INT
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_vectors (
			chunk_id UUID PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			vector vector(%d)
		);`, s.dim),
		`CREATE INDEX IF NOT EXISTS chunks_doc_ord_idx ON chunks (document_id, ord);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS chunk_vectors_idx
		ON chunk_vectors USING ivfflat (vector vector_cosine_ops)
		WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceDocument(ctx context.Context, doc Document, chunks []Chunk, vectors []embeddings.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("vector dimension %d does not match store dimension %d", len(v), s.dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Cascades remove the old chunks and vectors in the same transaction.
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE filename=$1`, doc.Filename); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents(id, filename, status, pages, stages) VALUES($1,$2,$3,$4,$5)`,
		doc.ID, doc.Filename, doc.Status, doc.PageCount, pq.Array(doc.Stages))
	if err != nil {
		return err
	}
	for i, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, document_id, ord, page, text, token_count) VALUES($1,$2,$3,$4,$5,$6)`,
			c.ID, doc.ID, c.Index, c.PageNumber, c.Text, c.TokenCount)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunk_vectors(chunk_id, vector) VALUES($1,$2::vector)`,
			c.ID, vectorToString(vectors[i]))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE filename=$1`, filename)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

func (s *PostgresStore) Document(ctx context.Context, filename string) (Document, error) {
	var doc Document
	var stages []string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, pages, stages, created_at FROM documents WHERE filename=$1`, filename)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Status, &doc.PageCount, pq.Array(&stages), &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("document %q: %w", filename, ErrNotFound)
		}
		return Document{}, err
	}
	doc.Stages = stages
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.filename, COUNT(c.id), d.pages, d.created_at
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.filename
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		if err := rows.Scan(&info.Filename, &info.ChunkCount, &info.PageCount, &info.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Search(ctx context.Context, vec embeddings.Vector, k int, filename string) ([]Hit, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vec), s.dim)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.filename, c.ord, c.page, c.text, c.token_count,
			1 - (v.vector <=> $1::vector) AS similarity
		FROM chunk_vectors v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE ($2 = '' OR d.filename = $2)
		ORDER BY v.vector <=> $1::vector
		LIMIT $3
	`, vectorToString(vec), filename, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var score float64
		if err := rows.Scan(&h.Chunk.ID, &h.Chunk.DocumentID, &h.Chunk.Filename, &h.Chunk.Index,
			&h.Chunk.PageNumber, &h.Chunk.Text, &h.Chunk.TokenCount, &score); err != nil {
			return nil, err
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PostgresStore) Neighbors(ctx context.Context, documentID uuid.UUID, seq, window int) ([]Chunk, error) {
	if window <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.filename, c.ord, c.page, c.text, c.token_count
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1 AND c.ord BETWEEN $2 AND $3 AND c.ord <> $4
		ORDER BY c.ord
	`, documentID, seq-window, seq+window, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Filename, &c.Index, &c.PageNumber, &c.Text, &c.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// vectorToString converts a Vector to pgvector array format: "[0.1,0.2,...]"
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
