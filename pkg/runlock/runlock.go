// Package runlock provides an advisory redis lease so scheduled jobs running
// on several replicas do not start the same run concurrently. Correctness does
// not depend on it; the reconciliation selection guard tolerates overlap.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Lock struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, ttl: ttl}
}

func (l *Lock) key(name string) string {
	return fmt.Sprintf("runlock:%s", name)
}

// Acquire returns true when this caller won the lease.
func (l *Lock) Acquire(ctx context.Context, name string) (bool, error) {
	return l.rdb.SetNX(ctx, l.key(name), "1", l.ttl).Result()
}

func (l *Lock) Release(ctx context.Context, name string) error {
	return l.rdb.Del(ctx, l.key(name)).Err()
}
