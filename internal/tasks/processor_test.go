package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lockerhub/internal/models"
	"lockerhub/internal/queue"
)

type fakeArchive struct {
	events []models.Event
	err    error
}

func (a *fakeArchive) PutEvent(_ context.Context, event models.Event) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

func message(event models.Event) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: queue.EncodeEvent(event)}
}

func TestProcessor_Handle(t *testing.T) {
	archive := &fakeArchive{}
	p := NewProcessor(archive, zerolog.Nop())
	ctx := context.Background()

	event := models.Event{
		ID:         "evt-1",
		Type:       models.EventReservationCreated,
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		LockerID:   "locker-1",
		UserID:     "user-1",
	}
	require.NoError(t, p.Handle(ctx, message(event)))
	require.Equal(t, []models.Event{event}, archive.events)

	unknown := event
	unknown.Type = "locker.painted"
	require.NoError(t, p.Handle(ctx, message(unknown)))
	require.Len(t, archive.events, 1)

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{"junk": "1"}}))
	require.Len(t, archive.events, 1)
}

func TestProcessor_ArchiveFailureIsRetried(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket unavailable")}
	p := NewProcessor(archive, zerolog.Nop())

	err := p.Handle(context.Background(), message(models.Event{
		ID:         "evt-1",
		Type:       models.EventLockerCreated,
		OccurredAt: time.Now(),
	}))
	require.Error(t, err)
}
