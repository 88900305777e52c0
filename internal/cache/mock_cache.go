package cache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docqa/internal/answer"
)

// MockCache is a mock implementation of Cache using testify/mock.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetAnswer(ctx context.Context, key string) (*answer.Answer, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*answer.Answer), args.Error(1)
}

func (m *MockCache) SetAnswer(ctx context.Context, key string, ans *answer.Answer, ttl time.Duration) error {
	args := m.Called(ctx, key, ans, ttl)
	return args.Error(0)
}

func (m *MockCache) InvalidateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
