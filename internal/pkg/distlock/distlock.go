// Package distlock provides short-lived keyed locks used to serialize
// concurrent subscribe requests for the same email address. The
// lookup-then-insert pattern in the subscription store is not atomic on its
// own; holding the per-email lock across the transaction means two
// first-time subscriptions for one address never race each other under
// normal operation. The unique index on subscriptions(email) remains the
// backstop if the lock backend is unavailable.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// A lock instance is single-use: Acquire once, Release once.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// SubscribeKey derives the lock key for a subscriber email. The email is
// already lower-cased by the domain parser, but normalize again so callers
// cannot accidentally shard one address across two keys.
func SubscribeKey(email string) string {
	return "subscribe:" + strings.ToLower(strings.TrimSpace(email))
}

// New creates a keyed lock using the best available backend.
// With a Redis client, uses SET NX with a TTL (preferred across hosts).
// Otherwise falls back to PostgreSQL advisory locks.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// Advisory locks are session-scoped, so Acquire pins one pooled connection
// and holds it until Release; unlocking from a different session would be a
// silent no-op. The lock still frees itself if the pinned connection drops,
// similar to a Redis TTL expiring.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking. On success
// the session holding the lock stays checked out until Release.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release unlocks on the session that acquired the lock and returns the
// connection to the pool. Releasing an unacquired lock is a no-op.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
