package redis

import (
	"context"
	"fmt"
	"time"

	rplatform "access-bot-backend/internal/platform/redis"
)

// Throttle is a fixed-window per-user update counter.
type Throttle struct {
	client *rplatform.Client
	limit  int64
	window time.Duration
}

func NewThrottle(client *rplatform.Client, limit int, window time.Duration) *Throttle {
	return &Throttle{client: client, limit: int64(limit), window: window}
}

func (t *Throttle) key(userID int64) string {
	return fmt.Sprintf("throttle:user:%d", userID)
}

// Allow counts one update from userID and reports whether it fits the window.
func (t *Throttle) Allow(ctx context.Context, userID int64) (bool, error) {
	if t.limit <= 0 {
		return true, nil
	}
	key := t.key(userID)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		// the first update anchors the window
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return true, err
		}
	}
	return n <= t.limit, nil
}

// Reset clears the counter of userID.
func (t *Throttle) Reset(ctx context.Context, userID int64) error {
	return t.client.Del(ctx, t.key(userID)).Err()
}
