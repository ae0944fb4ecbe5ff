package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lockerhub/internal/config"
	"lockerhub/internal/models"
)

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.BucketEvents
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

type eventRecord struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	LockerID      string    `json:"locker_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Count         int       `json:"count,omitempty"`
}

// EventKey places an event under its UTC day so archives list in time order.
func EventKey(event models.Event) string {
	return fmt.Sprintf("events/%s/%s/%s.json",
		event.OccurredAt.UTC().Format("2006/01/02"),
		event.Type,
		event.ID,
	)
}

func EncodeEvent(event models.Event) ([]byte, error) {
	return json.Marshal(eventRecord{
		ID:            event.ID,
		Type:          string(event.Type),
		OccurredAt:    event.OccurredAt.UTC(),
		LockerID:      event.LockerID,
		ReservationID: event.ReservationID,
		UserID:        event.UserID,
		Count:         event.Count,
	})
}

// PutEvent writes one JSON object per event. Writing the same event twice
// overwrites it, so redelivered stream messages are harmless.
func (s *ObjectStore) PutEvent(ctx context.Context, event models.Event) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.cfg.BucketEvents, EventKey(event),
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("put event %s: %w", event.ID, err)
	}
	return nil
}
