package schedule

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrLockNotAcquired means another writer currently holds the key. Callers
// treat it like a lost race: the slot is being committed by someone else.
var ErrLockNotAcquired = errors.New("slot lock not acquired")

// Locker serializes the check-then-insert write path per slot key. The redis
// package provides a distributed implementation for multi-node deployments;
// LocalLocker covers single-node ones.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const lockShards = 64

// LocalLocker is an in-process Locker backed by sharded mutexes. Unlike the
// redis locker it blocks until the key is free rather than failing fast;
// in-process contention windows are microseconds, not network round trips.
type LocalLocker struct {
	shards [lockShards]sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.shards[h.Sum32()%lockShards]

	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
