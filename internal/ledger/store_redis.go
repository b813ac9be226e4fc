package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "ledger:attempts:"

// RedisStore keeps each identity's attempts in a sorted set scored by
// timestamp, which matches the scorer's access pattern (trailing window,
// newest first). Retention rides on a self-trim during append plus a key
// TTL, so PurgeOlderThan is a no-op.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, attempt Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	key := attemptKeyPrefix + attempt.Phone
	cutoff := attempt.OccurredAt.Add(-Retention)

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(attempt.OccurredAt.UnixMilli()),
		Member: payload,
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff.UnixMilli()))
	pipe.Expire(ctx, key, Retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentFor(ctx context.Context, phone string, since time.Time, limit int) ([]Attempt, error) {
	key := attemptKeyPrefix + phone
	members, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", since.UnixMilli()),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}

	attempts := make([]Attempt, 0, len(members))
	for _, member := range members {
		var attempt Attempt
		if err := json.Unmarshal([]byte(member), &attempt); err != nil {
			return nil, fmt.Errorf("unmarshal attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func (s *RedisStore) PurgeOlderThan(_ context.Context, _ time.Time) (int, error) {
	// Retention is enforced per key on append (trim + TTL).
	return 0, nil
}
