package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts signals a temporarily blocked login.
var ErrTooManyAttempts = errors.New("auth: demasiados intentos fallidos, intente de nuevo en unos minutos")

// LoginLimiter blocks a username after repeated failed logins. Counters
// live in Redis so the block survives process restarts and is shared
// across instances.
type LoginLimiter struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
	disabled    bool
}

// NewLoginLimiter creates the limiter. A nil client disables limiting.
func NewLoginLimiter(client *redis.Client, maxFailures int, window time.Duration) *LoginLimiter {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginLimiter{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
		disabled:    client == nil,
	}
}

func attemptsKey(usuario string) string {
	return "login_attempts:" + usuario
}

// Check returns ErrTooManyAttempts when the username is blocked.
func (l *LoginLimiter) Check(ctx context.Context, usuario string) error {
	if l.disabled {
		return nil
	}
	count, err := l.client.Get(ctx, attemptsKey(usuario)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("auth: check login attempts: %w", err)
	}
	if count >= l.maxFailures {
		return ErrTooManyAttempts
	}
	return nil
}

// RecordFailure counts one failed login. The window starts at the first
// failure; further failures inside it do not extend the block.
func (l *LoginLimiter) RecordFailure(ctx context.Context, usuario string) error {
	if l.disabled {
		return nil
	}
	key := attemptsKey(usuario)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("auth: record login failure: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("auth: set attempts expiry: %w", err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, usuario string) error {
	if l.disabled {
		return nil
	}
	if err := l.client.Del(ctx, attemptsKey(usuario)).Err(); err != nil {
		return fmt.Errorf("auth: reset login attempts: %w", err)
	}
	return nil
}
