package queue

import (
	"fmt"
	"strconv"
	"time"

	"lockerhub/internal/models"
)

// EncodeEvent flattens an event into stream fields.
func EncodeEvent(event models.Event) map[string]any {
	return map[string]any{
		"type":           string(event.Type),
		"id":             event.ID,
		"occurred_at":    event.OccurredAt.UTC().Format(time.RFC3339Nano),
		"locker_id":      event.LockerID,
		"reservation_id": event.ReservationID,
		"user_id":        event.UserID,
		"count":          strconv.Itoa(event.Count),
	}
}

// DecodeEvent is the inverse of EncodeEvent over the values Redis returns.
func DecodeEvent(values map[string]any) (models.Event, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}

	event := models.Event{
		Type:          models.EventType(field("type")),
		ID:            field("id"),
		LockerID:      field("locker_id"),
		ReservationID: field("reservation_id"),
		UserID:        field("user_id"),
	}
	if event.Type == "" || event.ID == "" {
		return models.Event{}, fmt.Errorf("event missing type or id")
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, field("occurred_at"))
	if err != nil {
		return models.Event{}, fmt.Errorf("parse occurred_at: %w", err)
	}
	event.OccurredAt = occurredAt

	if raw := field("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return models.Event{}, fmt.Errorf("parse count: %w", err)
		}
		event.Count = count
	}
	return event, nil
}
