package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"docqa/internal/answer"
)

// Cache stores answers for repeated queries. Any corpus write invalidates the
// whole cache, since a changed corpus can change any answer.
type Cache interface {
	// GetAnswer retrieves a cached answer by key. Returns nil on a miss.
	GetAnswer(ctx context.Context, key string) (*answer.Answer, error)

	// SetAnswer stores an answer with TTL.
	SetAnswer(ctx context.Context, key string, ans *answer.Answer, ttl time.Duration) error

	// InvalidateAll drops every cached answer.
	InvalidateAll(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// Key derives a stable cache key from the query and its document filter.
func Key(query, documentFilter string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(documentFilter))
	return hex.EncodeToString(h.Sum(nil))
}
