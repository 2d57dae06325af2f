package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is how long a handled position is remembered. Redeliveries
// happen within a rebalance or restart, far inside this window.
const DefaultRedisTTL = 24 * time.Hour

// RedisLedger keeps handled positions as expiring Redis keys.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger connects to addr and checks the connection.
func NewRedisLedger(ctx context.Context, addr string, ttl time.Duration) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLedger{client: client, ttl: ttl}, nil
}

func (l *RedisLedger) key(pos Position) string {
	return "orderflow:seen:" + pos.String()
}

func (l *RedisLedger) MarkProcessed(ctx context.Context, pos Position) (bool, error) {
	first, err := l.client.SetNX(ctx, l.key(pos), time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record %s: %w", pos, err)
	}
	return first, nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
