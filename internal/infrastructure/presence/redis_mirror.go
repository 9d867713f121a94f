package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

// RedisMirror stores the last known status of every user as a hash so other
// processes can answer last-seen queries.
type RedisMirror struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisMirror(rdb redis.UniversalClient, ttl time.Duration) *RedisMirror {
	return &RedisMirror{rdb: rdb, ttl: ttl}
}

func (m *RedisMirror) write(ctx context.Context, userID, status string, at time.Time) error {
	key := keyPrefix + userID
	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, key, "status", status, "lastActiveAt", strconv.FormatInt(at.UnixMilli(), 10))
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) MarkOnline(ctx context.Context, userID string, at time.Time) error {
	return m.write(ctx, userID, "online", at)
}

func (m *RedisMirror) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	return m.write(ctx, userID, "offline", at)
}

func (m *RedisMirror) LastActive(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := m.rdb.HGet(ctx, keyPrefix+userID, "lastActiveAt").Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (m *RedisMirror) Close() error {
	return m.rdb.Close()
}
