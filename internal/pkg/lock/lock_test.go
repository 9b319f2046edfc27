package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any set of concurrent wallet mutations on the same entity, the
// final value must equal sequential execution of all of them.
func TestConcurrentMutationSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		id := rapid.Int64Range(1, 1000000).Draw(t, "id")
		locks := NewKeyed()
		value := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(a int64) {
				defer wg.Done()
				locks.Lock(KindUser, id)
				defer locks.Unlock(KindUser, id)
				value += a
			}(amount)
		}
		wg.Wait()

		if value != expected {
			t.Fatalf("value mismatch: expected %d, got %d", expected, value)
		}
	})
}

func TestKeyedLocksAreIndependent(t *testing.T) {
	locks := NewKeyed()

	locks.Lock(KindUser, 1)
	defer locks.Unlock(KindUser, 1)

	// Same id under a different kind must not block.
	assert.True(t, locks.TryLock(KindBattle, 1))
	locks.Unlock(KindBattle, 1)

	// Different id under the same kind must not block.
	assert.True(t, locks.TryLock(KindUser, 2))
	locks.Unlock(KindUser, 2)

	// Same key is held.
	assert.False(t, locks.TryLock(KindUser, 1))
}

func TestLockWithTimeout(t *testing.T) {
	locks := NewKeyed()
	ctx := context.Background()

	locks.Lock(KindDeposit, 7)
	acquired := locks.LockWithTimeout(ctx, KindDeposit, 7, 50*time.Millisecond)
	assert.False(t, acquired)

	locks.Unlock(KindDeposit, 7)
	acquired = locks.LockWithTimeout(ctx, KindDeposit, 7, 50*time.Millisecond)
	require.True(t, acquired)
	locks.Unlock(KindDeposit, 7)
}

func TestWithLockContextTimeout(t *testing.T) {
	locks := NewKeyed()
	locks.Lock(KindWithdrawal, 3)
	defer locks.Unlock(KindWithdrawal, 3)

	err := locks.WithLockContext(context.Background(), KindWithdrawal, 3, 50*time.Millisecond, func() error {
		t.Fatal("must not run while the lock is held elsewhere")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}
