package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lockerhub/internal/ids"
	"lockerhub/internal/models"
)

// publish sends an event and logs, rather than returns, a failure. The state
// change it describes has already committed.
func publish(ctx context.Context, events EventPublisher, log zerolog.Logger, event models.Event) {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("publish event failed")
	}
}

// expireDue is the shared lazy-expiry step run ahead of list and unlock paths.
func expireDue(ctx context.Context, reservations ReservationStore, events EventPublisher, log zerolog.Logger, now time.Time) (int, error) {
	expired, err := reservations.ExpireDue(ctx, now)
	if err != nil {
		return 0, storeErr("expire reservations", err)
	}
	for _, r := range expired {
		publish(ctx, events, log, models.Event{
			Type:          models.EventReservationExpired,
			OccurredAt:    now,
			LockerID:      r.LockerID,
			ReservationID: r.ID,
			UserID:        r.UserID,
		})
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("expired reservations")
	}
	return len(expired), nil
}
