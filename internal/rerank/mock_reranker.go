package rerank

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockReranker is a mock implementation of Reranker using testify/mock.
type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Scores(ctx context.Context, query string, texts []string) ([]float64, error) {
	args := m.Called(ctx, query, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}
