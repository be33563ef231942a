package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "fieldservice:login_failures:"

// LoginLockout counts failed logins per email in Redis and locks the email
// once MaxAttempts failures land inside the window. A nil client disables it.
type LoginLockout struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewLoginLockout builds a lockout tracker.
func NewLoginLockout(client *redis.Client, maxAttempts int, window time.Duration) *LoginLockout {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginLockout{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Locked reports whether the email has exhausted its attempts.
func (l *LoginLockout) Locked(ctx context.Context, email string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	count, err := l.client.Get(ctx, lockoutKeyPrefix+email).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return count >= l.maxAttempts, nil
}

// RecordFailure increments the failure counter. The window starts at the
// first failure and is not extended by later ones.
func (l *LoginLockout) RecordFailure(ctx context.Context, email string) error {
	if l == nil || l.client == nil {
		return nil
	}
	key := lockoutKeyPrefix + email
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.client.Expire(ctx, key, l.window).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLockout) Reset(ctx context.Context, email string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, lockoutKeyPrefix+email).Err()
}
