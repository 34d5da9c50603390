package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// SessionLocker 为同一会话的快照写入提供单写者保证。
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// ---- 进程内实现 ----

type sessionMutex struct {
	mu   sync.Mutex
	refs int
}

type localSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionMutex
}

// NewLocalSessionLocker 创建一个进程内的会话锁，未被持有的锁会被回收。
func NewLocalSessionLocker() SessionLocker {
	return &localSessionLocker{locks: make(map[string]*sessionMutex)}
}

func (l *localSessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	sm, ok := l.locks[sessionID]
	if !ok {
		sm = &sessionMutex{}
		l.locks[sessionID] = sm
	}
	sm.refs++
	l.mu.Unlock()

	sm.mu.Lock()
	if err := ctx.Err(); err != nil {
		l.release(sessionID, sm)
		return nil, err
	}
	return func() { l.release(sessionID, sm) }, nil
}

func (l *localSessionLocker) release(sessionID string, sm *sessionMutex) {
	sm.mu.Unlock()
	l.mu.Lock()
	sm.refs--
	if sm.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}

// ---- Redis 实现 ----

// ErrLockTimeout 表示在上下文结束前未能拿到 Redis 锁。
var ErrLockTimeout = errors.New("session lock timeout")

const lockRetryInterval = 50 * time.Millisecond

// 只有持有者才能释放锁
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisSessionLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionLocker 创建基于 Redis SET NX 的会话锁，适用于多实例共享同一快照目录。
// ttl 防止持有者崩溃后锁永远不释放。
func NewRedisSessionLocker(rdb *redis.Client, ttl time.Duration) SessionLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisSessionLocker{rdb: rdb, ttl: ttl}
}

func lockKey(sessionID string) string {
	return fmt.Sprintf("chat_history:lock:%s", sessionID)
}

func (l *redisSessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKey(sessionID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return func() {
				// 使用后台上下文，请求被取消后也要释放锁
				_ = unlockScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
