package station

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const snapshotsKey = "stations:snapshots"

// Cache keeps the public station list as a JSON blob in Redis with a short
// TTL, so the map endpoint does not hit the fleet on every poll.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) SetSnapshots(ctx context.Context, snaps []Snapshot) error {
	data, err := json.Marshal(snaps)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotsKey, data, c.ttl).Err()
}

func (c *Cache) GetSnapshots(ctx context.Context) ([]Snapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Invalidate drops the cached list after any occupancy change.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, snapshotsKey).Err()
}
