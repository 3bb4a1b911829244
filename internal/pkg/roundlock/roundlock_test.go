package roundlock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	client, _ := setupMiniredis(t)
	return client
}

func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	logger.Silence()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func fastOptions() Options {
	return Options{
		Expiry:      5 * time.Second,
		Tries:       200,
		RetryDelay:  5 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "lock:cash-round:42", Key(42))
	assert.NotEqual(t, Key(1), Key(2))
}

func TestRedisLocker_RunsFunctionAndPropagatesError(t *testing.T) {
	locker := NewRedisLocker(setupRedis(t), fastOptions())
	ctx := context.Background()

	executed := false
	err := locker.WithRoundLock(ctx, 1, func(context.Context) error {
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)

	sentinel := errors.New("boom")
	err = locker.WithRoundLock(ctx, 1, func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	// the lock was released after the failing call
	err = locker.WithRoundLock(ctx, 1, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisLocker_SerialisesSameRound(t *testing.T) {
	locker := NewRedisLocker(setupRedis(t), fastOptions())
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithRoundLock(ctx, 7, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestRedisLocker_BusyRound(t *testing.T) {
	client := setupRedis(t)
	holder := NewRedisLocker(client, fastOptions())
	impatient := NewRedisLocker(client, Options{
		Expiry:      5 * time.Second,
		Tries:       1,
		RetryDelay:  time.Millisecond,
		DriftFactor: 0.01,
	})
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.WithRoundLock(ctx, 3, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	err := impatient.WithRoundLock(ctx, 3, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrRoundBusy)

	// a different round is not affected
	err = impatient.WithRoundLock(ctx, 4, func(context.Context) error { return nil })
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithRoundLock(context.Background(), 9, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locker.WithRoundLock(ctx, 9, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrRoundBusy)

	assert.NoError(t, locker.WithRoundLock(context.Background(), 10, func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, locker.WithRoundLock(context.Background(), 9, func(context.Context) error { return nil }))
}

func TestRedisLocker_ExtendsWhileRunning(t *testing.T) {
	client, mr := setupMiniredis(t)
	opts := fastOptions()
	opts.Expiry = 300 * time.Millisecond
	locker := NewRedisLocker(client, opts)

	err := locker.WithRoundLock(context.Background(), 5, func(context.Context) error {
		// miniredis TTLs only move on FastForward
		mr.FastForward(250 * time.Millisecond)
		require.Less(t, mr.TTL(Key(5)), 100*time.Millisecond)

		time.Sleep(250 * time.Millisecond)
		assert.Greater(t, mr.TTL(Key(5)), 200*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(Key(5)))
}

func TestLocalLocker_PrunesReleasedRounds(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(roundID uint) {
			defer wg.Done()
			assert.NoError(t, locker.WithRoundLock(ctx, roundID, func(context.Context) error {
				time.Sleep(time.Millisecond)
				return nil
			}))
		}(uint(i % 4))
	}
	wg.Wait()
	assert.Equal(t, 0, locker.size())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithRoundLock(ctx, 1, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired
	assert.ErrorIs(t, locker.WithRoundLock(cancelled, 1, func(context.Context) error { return nil }), domain.ErrRoundBusy)
	assert.Equal(t, 1, locker.size())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, locker.size())
}
