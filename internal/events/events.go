package events

import (
	"context"
	"time"

	"docqa/internal/retry"
)

// EventType enumerates corpus lifecycle notifications.
type EventType string

const (
	EventDocumentIndexed EventType = "document.indexed"
	EventDocumentDeleted EventType = "document.deleted"
	EventCorpusCleared   EventType = "corpus.cleared"
)

// Event describes a change to the corpus. Downstream consumers use these to
// refresh dashboards or trigger re-sync without polling the API.
type Event struct {
	Type       EventType `json:"type"`
	Filename   string    `json:"filename,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher exposes a minimal contract to emit corpus events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, p Publisher, event Event, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := p.Publish(ctx, event); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
