package cidrsource

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"geoprobe/internal/config"
	"geoprobe/internal/support"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSourceLoad(t *testing.T) {
	mr, client := newTestRedis(t)
	if err := mr.Set("geoprobe:cidrs", `{"ranges": ["192.0.2.0/24", "nope"]}`); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	ranges, err := (&RedisSource{Client: client, Key: "geoprobe:cidrs"}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(ranges) != 1 || ranges[0] != "192.0.2.0/24" {
		t.Fatalf("Load returned %v, want [192.0.2.0/24]", ranges)
	}
}

func TestRedisSourceMissingKey(t *testing.T) {
	_, client := newTestRedis(t)

	_, err := (&RedisSource{Client: client, Key: "geoprobe:cidrs"}).Load(context.Background())
	if !errors.Is(err, ErrNoAddressSource) {
		t.Fatalf("Load returned %v, want ErrNoAddressSource", err)
	}
}

func TestRedisSourceStoreRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	source := &RedisSource{Client: client, Key: "geoprobe:cidrs"}
	ctx := context.Background()

	if err := source.Store(ctx, []string{"203.0.113.0/24", "bad", "203.0.113.0/24"}); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	ranges, err := source.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(ranges) != 1 || ranges[0] != "203.0.113.0/24" {
		t.Fatalf("Load returned %v, want [203.0.113.0/24]", ranges)
	}

	if err := source.Store(ctx, []string{"bad"}); !errors.Is(err, ErrNoAddressSource) {
		t.Fatalf("Store returned %v, want ErrNoAddressSource", err)
	}
}

func TestNewRedisSourceUsesSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("GEOPROBE_REDIS_URL", "redis://"+mr.Addr())
	t.Cleanup(func() { _ = support.CloseRedisClient() })

	source, err := New(config.SourceConfig{Kind: config.SourceRedis, RedisKey: "ranges"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := mr.Set("ranges", `{"ranges": ["198.51.100.0/24"]}`); err != nil {
		t.Fatalf("seed redis: %v", err)
	}
	ranges, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(ranges) != 1 || ranges[0] != "198.51.100.0/24" {
		t.Fatalf("Load returned %v, want [198.51.100.0/24]", ranges)
	}
}
