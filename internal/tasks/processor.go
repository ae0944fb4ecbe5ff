package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lockerhub/internal/models"
	"lockerhub/internal/queue"
)

// Archiver persists events outside the stream.
type Archiver interface {
	PutEvent(ctx context.Context, event models.Event) error
}

// Processor archives every domain event it receives from the stream.
type Processor struct {
	archive Archiver
	logger  zerolog.Logger
}

func NewProcessor(archive Archiver, logger zerolog.Logger) *Processor {
	return &Processor{
		archive: archive,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	event, err := queue.DecodeEvent(msg.Values)
	if err != nil {
		// A malformed entry can never succeed; drop it instead of retrying forever.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}

	switch event.Type {
	case models.EventLockerCreated,
		models.EventLockerUpdated,
		models.EventLockerDeactivated,
		models.EventLockerReactivated,
		models.EventReservationCreated,
		models.EventReservationReleased,
		models.EventReservationExpired,
		models.EventReservationWindowUpdated:
	default:
		p.logger.Warn().Str("type", string(event.Type)).Msg("unknown event type")
		return nil
	}

	if err := p.archive.PutEvent(ctx, event); err != nil {
		return fmt.Errorf("archive %s: %w", event.ID, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("locker_id", event.LockerID).
		Msg("event archived")
	return nil
}
