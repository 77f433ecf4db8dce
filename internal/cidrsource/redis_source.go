package cidrsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource reads a ranges document stored as a plain string value.
type RedisSource struct {
	Client *redis.Client
	Key    string
}

func (s *RedisSource) Load(ctx context.Context) ([]string, error) {
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s is not set", ErrNoAddressSource, s.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load CIDR ranges from redis key %s: %w", s.Key, err)
	}
	return ParseDocument(data)
}

// Store replaces the document under Key with the normalized ranges.
func (s *RedisSource) Store(ctx context.Context, ranges []string) error {
	normalized, err := NormalizeRanges(ranges)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Document{Ranges: normalized})
	if err != nil {
		return fmt.Errorf("cidrsource: serialize ranges: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("cidrsource: store ranges in redis: %w", err)
	}
	return nil
}
