package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lockerhub/internal/models"
)

const (
	refreshKeyPrefix  = "refresh:"
	rotationKeyPrefix = "refresh:rotated:"
)

// RefreshStore keeps refresh sessions in Redis under the hex SHA-256 of the
// token. The token itself is never stored.
type RefreshStore struct {
	redis *redis.Client
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{redis: client}
}

func refreshKey(tokenHash []byte) string {
	return refreshKeyPrefix + hex.EncodeToString(tokenHash)
}

func rotationKey(tokenHash []byte) string {
	return rotationKeyPrefix + hex.EncodeToString(tokenHash)
}

func (s *RefreshStore) Save(ctx context.Context, tokenHash []byte, session models.RefreshSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode refresh session: %w", err)
	}
	if err := s.redis.Set(ctx, refreshKey(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// Take reads and deletes the session in one GETDEL, so only one caller can
// consume a given token.
func (s *RefreshStore) Take(ctx context.Context, tokenHash []byte) (models.RefreshSession, bool, error) {
	payload, err := s.redis.GetDel(ctx, refreshKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RefreshSession{}, false, nil
		}
		return models.RefreshSession{}, false, fmt.Errorf("take refresh session: %w", err)
	}

	var session models.RefreshSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return models.RefreshSession{}, false, fmt.Errorf("decode refresh session: %w", err)
	}
	return session, true, nil
}

// Delete removes the session, its own rotation record and the rotation record
// of the token it replaced, so neither token can be exchanged afterwards.
func (s *RefreshStore) Delete(ctx context.Context, tokenHash []byte) error {
	session, found, err := s.Take(ctx, tokenHash)
	if err != nil {
		return err
	}

	keys := []string{rotationKey(tokenHash)}
	if found && session.PreviousHash != "" {
		keys = append(keys, rotationKeyPrefix+session.PreviousHash)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete refresh session: %w", err)
	}
	return nil
}

// SaveRotation records the pair a consumed token was exchanged for, so late
// presenters of the old token within ttl receive the same pair.
func (s *RefreshStore) SaveRotation(ctx context.Context, tokenHash []byte, pair models.SessionPair, ttl time.Duration) error {
	payload, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encode rotation: %w", err)
	}
	if err := s.redis.Set(ctx, rotationKey(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save rotation: %w", err)
	}
	return nil
}

func (s *RefreshStore) Rotation(ctx context.Context, tokenHash []byte) (models.SessionPair, bool, error) {
	payload, err := s.redis.Get(ctx, rotationKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.SessionPair{}, false, nil
		}
		return models.SessionPair{}, false, fmt.Errorf("load rotation: %w", err)
	}

	var pair models.SessionPair
	if err := json.Unmarshal(payload, &pair); err != nil {
		return models.SessionPair{}, false, fmt.Errorf("decode rotation: %w", err)
	}
	return pair, true, nil
}
