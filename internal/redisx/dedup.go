package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper is a set of seen notification ids with a retention window.
// A claim only holds for Lease until it is committed.
type Deduper struct {
	Redis *redis.Client
	Scope string
	TTL   time.Duration
	Lease time.Duration
}

func NewDeduper(rdb *redis.Client, scope string, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = TTLDedup
	}
	lease := TTLDedupLease
	if lease > ttl {
		lease = ttl
	}
	return &Deduper{Redis: rdb, Scope: scope, TTL: ttl, Lease: lease}
}

func (d *Deduper) key(id string) string { return fmt.Sprintf(KeyDedup, d.Scope, id) }

// Claim atomically takes a processing lease on id and reports whether this
// caller is the first to see it.
func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	return d.Redis.SetNX(ctx, d.key(id), "processing", d.Lease).Result()
}

// Commit marks id as processed for the full retention window.
func (d *Deduper) Commit(ctx context.Context, id string) error {
	return d.Redis.Set(ctx, d.key(id), time.Now().UTC().Format(time.RFC3339), d.TTL).Err()
}

// Release forgets id so a redelivery can be processed again.
func (d *Deduper) Release(ctx context.Context, id string) error {
	return d.Redis.Del(ctx, d.key(id)).Err()
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.Redis, d.key(id))
}
