package roundlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

// Locker serialises mutations of one cash round. Different rounds never
// share a lock.
type Locker interface {
	WithRoundLock(ctx context.Context, roundID uint, fn func(ctx context.Context) error) error
}

// Key returns the lock key of a round
func Key(roundID uint) string {
	return fmt.Sprintf("lock:cash-round:%d", roundID)
}

// Options tune the Redis mutex
type Options struct {
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultOptions waits up to ~5s for a busy round
func DefaultOptions() Options {
	return Options{
		Expiry:      15 * time.Second,
		Tries:       20,
		RetryDelay:  250 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// RedisLocker is a distributed round lock backed by redsync
type RedisLocker struct {
	rs   *redsync.Redsync
	opts Options
}

// NewRedisLocker creates a Redis backed locker
func NewRedisLocker(client goredislib.UniversalClient, opts Options) *RedisLocker {
	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}
}

// WithRoundLock runs fn while holding the round's lock. Failing to get the
// lock returns an error wrapping domain.ErrRoundBusy; errors from fn are
// returned unchanged. The mutex is extended every Expiry/3 until fn returns,
// so a slow transaction keeps the lock.
func (l *RedisLocker) WithRoundLock(ctx context.Context, roundID uint, fn func(ctx context.Context) error) error {
	key := Key(roundID)
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrRoundBusy, key, err)
	}

	stop := make(chan struct{})
	extended := make(chan struct{})
	go l.keepAlive(ctx, mutex, key, stop, extended)

	defer func() {
		close(stop)
		<-extended
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			logger.Log.WithField("lock_key", key).Warnf("⚠️ Failed to release round lock: %v", err)
		}
	}()

	return fn(ctx)
}

// keepAlive extends the mutex until stop is closed. A failed extension is
// only logged: the row lock taken by the transaction still serialises writers.
func (l *RedisLocker) keepAlive(ctx context.Context, mutex *redsync.Mutex, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.opts.Expiry / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ok, err := mutex.ExtendContext(context.WithoutCancel(ctx)); !ok || err != nil {
				logger.Log.WithField("lock_key", key).Warnf("⚠️ Failed to extend round lock: %v", err)
			}
		}
	}
}

// LocalLocker is an in-process round lock for single instance deployments.
// A round's slot lives only while some caller holds or waits for it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uint]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[uint]*localSlot)}
}

func (l *LocalLocker) acquire(roundID uint) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[roundID]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[roundID] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) release(roundID uint, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, roundID)
	}
}

// WithRoundLock waits for the round's slot or for ctx to end
func (l *LocalLocker) WithRoundLock(ctx context.Context, roundID uint, fn func(ctx context.Context) error) error {
	s := l.acquire(roundID)
	defer l.release(roundID, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", domain.ErrRoundBusy, Key(roundID), ctx.Err())
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
