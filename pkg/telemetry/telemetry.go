// Package telemetry publishes dispatcher/worker state transitions to
// an optional Redis sidecar for host-side observability, grounded on
// the teacher's pkg/redis client, repurposed from vehicle-state sync
// to event publication.
package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Event names published on the "sprite-one:events" channel.
const (
	EventModelLoaded   = "model_loaded"
	EventTrainStep     = "train_step"
	EventUploadChunk   = "upload_chunk"
	EventIndustrial    = "industrial_alert"
	EventWorkerStarted = "worker_started"
)

const channel = "sprite-one:events"

// Publisher is a thin wrapper around a Redis client used only to
// publish events; nil is a valid, no-op Publisher so telemetry stays
// optional (spec.md never requires a Redis dependency for correctness).
type Publisher struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to addr and pings it once, the same eager-connect
// pattern the teacher's redis.New uses.
func New(addr, password string, db int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetry: connect to redis: %w", err)
	}
	return &Publisher{client: client, ctx: ctx}, nil
}

// Publish emits one event with a free-form detail string. A nil
// Publisher silently drops the event.
func (p *Publisher) Publish(event, detail string) error {
	if p == nil {
		return nil
	}
	return p.client.Publish(p.ctx, channel, fmt.Sprintf("%s:%s", event, detail)).Err()
}

// Subscribe returns a channel of raw event strings for host-side
// tooling.
func (p *Publisher) Subscribe() (<-chan *redis.Message, func()) {
	pubsub := p.client.Subscribe(p.ctx, channel)
	return pubsub.Channel(), func() { pubsub.Close() }
}

// Close releases the underlying connection. A nil Publisher is a no-op.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
