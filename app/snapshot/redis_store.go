package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore mirrors snapshots into Redis so several server instances can
// share one collection.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &RedisStore{client: client, ttl: ttl}, nil
}

func RedisKey(key string) string {
	return "snapshot:" + key
}

func (r *RedisStore) Save(ctx context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := r.client.Set(ctx, RedisKey(s.Key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", RedisKey(s.Key), err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, RedisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", RedisKey(key), err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		r.client.Del(ctx, RedisKey(key))
		return nil, ErrNotFound
	}
	return &s, nil
}

// Health pings the server and reports its status.
func (r *RedisStore) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if n, err := r.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = n
	}
	return health
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
