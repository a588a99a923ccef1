package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/models"
)

const defaultPrefix = "amplifier:ledger:"

var _ ledger.Store = (*RedisStore)(nil)

// RedisStore keeps engagement records as Redis keys that expire after the
// retention window, so several agent processes can share one ledger.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

type Options struct {
	Prefix    string
	Retention time.Duration
}

// NewClient connects to the Redis server at url (redis://host:port/db).
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr)
	return client, nil
}

func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.Retention <= 0 {
		opts.Retention = ledger.DefaultRetention
	}
	return &RedisStore{client: client, prefix: opts.Prefix, retention: opts.Retention}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.EngagementRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var rec models.EngagementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return &rec, nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, rec models.EngagementRecord, expiredBefore time.Time) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	key := s.prefix + rec.Key.String()
	ok, err := s.client.SetNX(ctx, key, data, s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set key %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	// The key is still present. It may be older than the caller's window if
	// the TTL is longer than the ledger retention.
	existing, err := s.Get(ctx, rec.Key.String())
	if err != nil {
		return false, err
	}
	if existing != nil && !existing.CreatedAt.Before(expiredBefore) {
		return false, nil
	}
	if err := s.client.Set(ctx, key, data, s.retention).Err(); err != nil {
		return false, fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return true, nil
}

// Compact is a no-op; Redis drops records when their TTL runs out.
func (s *RedisStore) Compact(ctx context.Context, cutoff time.Time, softCap int) (int, error) {
	return 0, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan ledger keys: %w", err)
	}
	return count, nil
}

// Health reports whether Redis answers a ping.
func (s *RedisStore) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}
	return health
}
