package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "groupsync/backend/pkg/errors"
	"groupsync/backend/pkg/redis"
)

// KeyLocker 按 key 互斥，用于串行化同一 (群组, 日期) 的重算
type KeyLocker interface {
	// Lock 阻塞直到获取 key 的锁或 ctx 结束；返回的 unlock 可重复调用
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewKeyLocker 有 Redis 时使用跨实例锁，否则使用进程内锁
func NewKeyLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) KeyLocker {
	local := newLocalKeyLocker()
	if rdb == nil {
		return local
	}
	return &redisKeyLocker{rdb: rdb, ttl: ttl, fallback: local, logger: logger}
}

// ── Redis 锁 ──

type redisKeyLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	fallback *localKeyLocker
	logger   *zap.Logger
}

const lockReleaseTimeout = 3 * time.Second

func (l *redisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.rdb.AcquireLock(ctx, key, l.ttl)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrLockTimeout) {
			return nil, err
		}
		// Redis 不可用：退化为进程内锁，事务内的咨询锁仍保证同 key 串行
		l.logger.Warn("Redis 锁不可用，退化为进程内锁", zap.String("key", key), zap.Error(err))
		return l.fallback.Lock(ctx, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
			defer cancel()
			if err := lock.Release(rctx); err != nil {
				l.logger.Warn("释放 Redis 锁失败", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// ── 进程内锁 ──

type localKeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	ch   chan struct{}
	refs int
}

func newLocalKeyLocker() *localKeyLocker {
	return &localKeyLocker{locks: make(map[string]*keyLockEntry)}
}

func (l *localKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyLockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

// release 引用计数归零时移除条目，避免 map 无限增长
func (l *localKeyLocker) release(key string, e *keyLockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
