package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore tracks transient crawl state: live run status and a TTL
// window suppressing repeats of the same canonical search URL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MarkSearched remembers a canonical search URL for the TTL window.
func (s *RedisStore) MarkSearched(ctx context.Context, searchURL string, ttl time.Duration) error {
	key := fmt.Sprintf("searched:%s", searchURL)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// RecentlySearched reports whether the identical search URL was crawled
// within the TTL window. The URL builder is deterministic, so string
// equality is sufficient.
func (s *RedisStore) RecentlySearched(ctx context.Context, searchURL string) (bool, error) {
	key := fmt.Sprintf("searched:%s", searchURL)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// SetRunState publishes the live state of a crawl run.
func (s *RedisStore) SetRunState(ctx context.Context, runID int64, state string, ttl time.Duration) error {
	key := fmt.Sprintf("run:%d", runID)
	return s.client.Set(ctx, key, state, ttl).Err()
}

// RunState returns the live state of a run, or "" when it expired.
func (s *RedisStore) RunState(ctx context.Context, runID int64) (string, error) {
	key := fmt.Sprintf("run:%d", runID)
	state, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return state, err
}
