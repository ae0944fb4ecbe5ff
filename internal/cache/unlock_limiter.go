package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnlockLimiter counts failed unlock attempts per subject (caller address and
// locker number) in a fixed window that starts at the first failure.
type UnlockLimiter struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewUnlockLimiter(client *redis.Client, maxAttempts int, window time.Duration) *UnlockLimiter {
	return &UnlockLimiter{
		redis:       client,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (l *UnlockLimiter) key(subject string) string {
	return "unlock:attempts:" + subject
}

func (l *UnlockLimiter) Blocked(ctx context.Context, subject string) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read unlock attempts: %w", err)
	}
	return count >= l.maxAttempts, nil
}

func (l *UnlockLimiter) Fail(ctx context.Context, subject string) error {
	count, err := l.redis.Incr(ctx, l.key(subject)).Result()
	if err != nil {
		return fmt.Errorf("record unlock failure: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(subject), l.window).Err(); err != nil {
			return fmt.Errorf("set unlock window: %w", err)
		}
	}
	return nil
}

func (l *UnlockLimiter) Reset(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, l.key(subject)).Err(); err != nil {
		return fmt.Errorf("reset unlock attempts: %w", err)
	}
	return nil
}
