// Package lock provides in-process keyed locking for money operations.
// Row locks inside database transactions guard correctness; these
// mutexes additionally serialize whole flows (e.g. two admins opening
// the same withdrawal, a user double-submitting a challenge) so the
// loser fails fast with a clean validation error instead of a
// serialization conflict.
package lock

import (
	"context"
	"sync"
	"time"
)

// Entity kinds used as lock namespaces.
const (
	KindUser       = "user"
	KindBattle     = "battle"
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindTournament = "tournament"
)

type key struct {
	kind string
	id   int64
}

// entityMutex wraps a mutex with reference counting for cleanup.
type entityMutex struct {
	mu       sync.Mutex
	refCount int
}

// Keyed provides per-entity locking.
type Keyed struct {
	locks sync.Map // map[key]*entityMutex
	pool  sync.Pool
}

// NewKeyed creates a new Keyed lock instance.
func NewKeyed() *Keyed {
	return &Keyed{
		pool: sync.Pool{
			New: func() any {
				return &entityMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given entity.
func (k *Keyed) getLock(kind string, id int64) *entityMutex {
	lk := key{kind: kind, id: id}
	if v, ok := k.locks.Load(lk); ok {
		return v.(*entityMutex)
	}

	newLock := k.pool.Get().(*entityMutex)
	newLock.refCount = 0

	actual, loaded := k.locks.LoadOrStore(lk, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		k.pool.Put(newLock)
	}
	return actual.(*entityMutex)
}

// Lock acquires the lock for an entity.
func (k *Keyed) Lock(kind string, id int64) {
	lock := k.getLock(kind, id)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for an entity.
func (k *Keyed) Unlock(kind string, id int64) {
	if v, ok := k.locks.Load(key{kind: kind, id: id}); ok {
		lock := v.(*entityMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (k *Keyed) TryLock(kind string, id int64) bool {
	lock := k.getLock(kind, id)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// LockWithTimeout attempts to acquire the lock with a timeout.
// Returns true if the lock was acquired, false if timeout occurred.
func (k *Keyed) LockWithTimeout(ctx context.Context, kind string, id int64, timeout time.Duration) bool {
	lock := k.getLock(kind, id)

	done := make(chan struct{})
	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		lock.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire the mutex;
		// release it as soon as that happens.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes fn while holding the entity's lock.
func (k *Keyed) WithLock(kind string, id int64, fn func() error) error {
	k.Lock(kind, id)
	defer k.Unlock(kind, id)
	return fn()
}

// WithLockContext executes fn while holding the entity's lock, with
// context support for cancellation.
func (k *Keyed) WithLockContext(ctx context.Context, kind string, id int64, timeout time.Duration, fn func() error) error {
	if !k.LockWithTimeout(ctx, kind, id, timeout) {
		return ErrLockTimeout
	}
	defer k.Unlock(kind, id)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
