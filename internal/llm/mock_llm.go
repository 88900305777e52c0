package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Complete(ctx context.Context, question, contextBlock string) (string, error) {
	args := m.Called(ctx, question, contextBlock)
	return args.String(0), args.Error(1)
}
