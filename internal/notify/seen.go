// internal/notify/seen.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenTracker remembers which notifications have already been announced so
// the watcher surfaces each one once, across ticks and restarts. The unread
// set itself stays server-owned; this is announcement state only.
type SeenTracker interface {
	// FirstSight records the notification and reports whether this is
	// the first time it has been seen for the identity.
	FirstSight(ctx context.Context, identityID string, notificationID int64) (bool, error)
}

// RedisSeenTracker persists announcement state in Redis, surviving watcher
// restarts.
type RedisSeenTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSeenTracker creates a Redis-backed tracker. Keys expire after ttl
// so the set does not grow unbounded; a zero ttl keeps entries for 7 days.
func NewRedisSeenTracker(client *redis.Client, ttl time.Duration) *RedisSeenTracker {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisSeenTracker{client: client, ttl: ttl}
}

func seenKey(identityID string) string {
	return fmt.Sprintf("bloodconnect:seen:%s", identityID)
}

func (t *RedisSeenTracker) FirstSight(ctx context.Context, identityID string, notificationID int64) (bool, error) {
	key := seenKey(identityID)
	added, err := t.client.SAdd(ctx, key, notificationID).Result()
	if err != nil {
		return false, err
	}
	_ = t.client.Expire(ctx, key, t.ttl).Err()
	return added == 1, nil
}

// MemorySeenTracker is the in-process fallback used when Redis is not
// configured. State is lost on restart, so notifications may be announced
// again after one.
type MemorySeenTracker struct {
	mu   sync.Mutex
	seen map[string]map[int64]struct{}
}

func NewMemorySeenTracker() *MemorySeenTracker {
	return &MemorySeenTracker{seen: map[string]map[int64]struct{}{}}
}

func (t *MemorySeenTracker) FirstSight(_ context.Context, identityID string, notificationID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.seen[identityID]
	if !ok {
		ids = map[int64]struct{}{}
		t.seen[identityID] = ids
	}
	if _, dup := ids[notificationID]; dup {
		return false, nil
	}
	ids[notificationID] = struct{}{}
	return true, nil
}
