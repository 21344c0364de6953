package repository

import (
	"context"
	"time"
)

// RecordRepository is durable key -> JSON-blob storage with last-write-wins
// semantics. Get returns domain.ErrNotFound when the key has never been
// written; an absent record is not an error condition for callers.
type RecordRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Locker is an optional per-key advisory lock used to serialize
// read-modify-write cycles for one session key. The contract without it is
// last-write-wins; implementations may fail with domain.ErrLockBusy.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
