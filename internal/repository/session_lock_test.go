package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (SessionLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionLocker(rdb, ttl), mr
}

func TestRedisLock_SecondHolderWaitsForUnlock(t *testing.T) {
	locker, _ := newRedisLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "s1")
	require.NoError(t, err)

	acquired := make(chan func(), 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		second, err := locker.Lock(ctx, "s1")
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the first holder still holds the lock")
	case <-time.After(200 * time.Millisecond):
	}

	unlock()
	select {
	case second := <-acquired:
		second()
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock did not acquire after unlock")
	}

	// 其他会话互不影响
	other, err := locker.Lock(context.Background(), "s2")
	require.NoError(t, err)
	other()
}

func TestRedisLock_ExpiredHolderCannotReleaseNewHolder(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	key := lockKey("s1")

	staleUnlock, err := locker.Lock(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	unlock, err := locker.Lock(context.Background(), "s1")
	require.NoError(t, err)
	holder, err := mr.Get(key)
	require.NoError(t, err)

	staleUnlock()
	require.True(t, mr.Exists(key))
	current, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, holder, current)

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRedisLock_ContextDeadline(t *testing.T) {
	locker, _ := newRedisLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "s1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "s1")
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestHistory_ConcurrentSavesWithRedisLock(t *testing.T) {
	locker, _ := newRedisLocker(t, 10*time.Second)
	repo := NewHistoryRepository(filepath.Join(t.TempDir(), "chat_history"), locker, nil)

	var wg sync.WaitGroup
	names := make([]string, 8)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := repo.Save(context.Background(), "shared", msgs("q", "a"))
			assert.NoError(t, err)
			names[i] = name
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, n := range names {
		require.NotEmpty(t, n)
		assert.False(t, seen[n], "duplicate snapshot %s", n)
		seen[n] = true
	}
	assert.Len(t, repo.Load(context.Background(), "shared"), 2)
}
