package badger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStore_AcquireAndRelease(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	ok, err := stores.Locks.AcquireLock(ctx, "scheduler", "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second holder is refused while the lease is live.
	ok, err = stores.Locks.AcquireLock(ctx, "scheduler", "token-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder may re-acquire its own lease.
	ok, err = stores.Locks.AcquireLock(ctx, "scheduler", "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, stores.Locks.ReleaseLock(ctx, "scheduler", "token-a"))

	ok, err = stores.Locks.AcquireLock(ctx, "scheduler", "token-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockStore_ExpiredLeaseIsReclaimable(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	ok, err := stores.Locks.AcquireLock(ctx, "lease", "stale", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = stores.Locks.AcquireLock(ctx, "lease", "fresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockStore_ReleaseIgnoresForeignToken(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	ok, err := stores.Locks.AcquireLock(ctx, "lease", "owner", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Releasing with the wrong token must not free the lease.
	require.NoError(t, stores.Locks.ReleaseLock(ctx, "lease", "intruder"))

	ok, err = stores.Locks.AcquireLock(ctx, "lease", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockStore_ConcurrentAcquireSingleWinner(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	const contenders = 8
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		token := "token-" + string(rune('a'+i))
		go func() {
			defer wg.Done()
			<-start
			ok, err := stores.Locks.AcquireLock(ctx, "contended", token, time.Minute)
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
