package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lockerhub/internal/models"
)

// Publisher appends domain events to a Redis stream, trimming it to roughly
// maxLen entries.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: EncodeEvent(event),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
