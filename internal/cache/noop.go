package cache

import (
	"context"
	"time"

	"docqa/internal/answer"
)

// NoOpCache is a cache implementation that does nothing. Used when no Redis
// is configured - every lookup is a miss and writes succeed silently.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetAnswer(ctx context.Context, key string) (*answer.Answer, error) {
	return nil, nil
}

func (c *NoOpCache) SetAnswer(ctx context.Context, key string, ans *answer.Answer, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
