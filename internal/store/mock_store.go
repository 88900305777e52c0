package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docqa/internal/embeddings"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReplaceDocument(ctx context.Context, doc Document, chunks []Chunk, vectors []embeddings.Vector) error {
	args := m.Called(ctx, doc, chunks, vectors)
	return args.Error(0)
}

func (m *MockStore) DeleteDocument(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *MockStore) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Document(ctx context.Context, filename string) (Document, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DocumentInfo), args.Error(1)
}

func (m *MockStore) Search(ctx context.Context, vec embeddings.Vector, k int, filename string) ([]Hit, error) {
	args := m.Called(ctx, vec, k, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}

func (m *MockStore) Neighbors(ctx context.Context, documentID uuid.UUID, seq, window int) ([]Chunk, error) {
	args := m.Called(ctx, documentID, seq, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Chunk), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
