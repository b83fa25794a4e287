package slotlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLocker(client, zerolog.Nop())
	l.wait = 100 * time.Millisecond
	l.retry = 10 * time.Millisecond
	return l, mr
}

func TestRedisLocker_TryLockExclusive(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "d1|2025-03-03|09:00")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("hms:slotlock:d1|2025-03-03|09:00"))

	_, ok, err = l.TryLock(ctx, "d1|2025-03-03|09:00")
	require.NoError(t, err)
	assert.False(t, ok, "second TryLock must fail while held")

	require.NoError(t, l.Unlock(ctx, "d1|2025-03-03|09:00", token))
	assert.False(t, mr.Exists("hms:slotlock:d1|2025-03-03|09:00"))
}

func TestRedisLocker_UnlockIgnoresForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "k", "someone-else"))
	assert.True(t, mr.Exists("hms:slotlock:k"), "foreign token must not release the lock")
}

func TestRedisLocker_LockTimesOut(t *testing.T) {
	l, _ := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	unlock2, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ExpiredLockIsReacquired(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(10 * time.Second)
	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker_Serializes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "k")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.slots, "released keys must be forgotten")
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	u1, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	u1()
	u2()
}
