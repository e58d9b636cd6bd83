// Package joblock serializes batch runs across schedulers.
//
// A held lock keeps two invocations of the same job from overlapping. The
// store's idempotent primitives keep batch output correct without it; the
// lock only avoids duplicated work and noisy hooks.
package joblock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrHeld is returned when another holder owns the lock.
var ErrHeld = errors.New("joblock: lock is held")

// DefaultTTL bounds how long an abandoned lock blocks other runs.
const DefaultTTL = 10 * time.Minute

// Locker acquires named locks.
type Locker interface {
	// Acquire takes the named lock for ttl. It returns ErrHeld without
	// blocking when another holder owns it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Release frees the lock if it is still owned by this lease.
	Release(ctx context.Context) error
}

// Run holds the named lock while fn executes.
func Run(ctx context.Context, l Locker, name string, ttl time.Duration, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	lease, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	// Release uses a fresh context so a cancelled run still frees the lock.
	defer func() { _ = lease.Release(context.WithoutCancel(ctx)) }() //nolint:errcheck // expiry covers a failed release

	return fn(ctx)
}

func newToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:]) //nolint:errcheck // crypto/rand.Read never fails
	return hex.EncodeToString(b[:])
}
