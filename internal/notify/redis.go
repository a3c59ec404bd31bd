package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts notifications over Redis pub/sub so observers on
// other processes see them. Same at-most-once contract as the in-process Hub.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to Redis and verifies the connection.
// prefix namespaces the channels (e.g. "usecased").
func NewRedisPublisher(addr, password string, db int, prefix string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, prefix: prefix}, nil
}

// Publish sends payload on the namespaced channel. Errors are logged and
// dropped; notifications must never fail a caller.
func (p *RedisPublisher) Publish(ctx context.Context, channel, payload string) {
	name := channel
	if p.prefix != "" {
		name = p.prefix + ":" + channel
	}
	if err := p.client.Publish(ctx, name, payload).Err(); err != nil {
		slog.Debug("redis publish dropped", "channel", name, "error", err)
	}
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
