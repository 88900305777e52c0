package events

import "context"

// NoOpPublisher discards every event. Used when no broker is configured.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

func (p *NoOpPublisher) Close() error {
	return nil
}
