package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "docqa.events."

// NewNATS constructs a thin NATS-based event publisher.
func NewNATS(log *slog.Logger, nc *nats.Conn) Publisher {
	return &natsPublisher{log: log, nc: nc}
}

type natsPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (p *natsPublisher) Publish(_ context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("event type required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(subjectPrefix+string(event.Type), body); err != nil {
		return err
	}
	p.log.Debug("event published", "type", event.Type, "filename", event.Filename)
	return nil
}

func (p *natsPublisher) Close() error {
	p.nc.Close()
	return nil
}
