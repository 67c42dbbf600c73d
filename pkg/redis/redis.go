package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"groupsync/backend/config"
	pkgerrors "groupsync/backend/pkg/errors"
)

// Client Redis 客户端封装
// 当前用于群组空闲时间重算的跨实例互斥锁
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 分布式锁 ──

const (
	lockPrefix     = "lock:"
	lockMinBackoff = 20 * time.Millisecond
	lockMaxBackoff = 250 * time.Millisecond
)

// releaseScript 仅当锁仍由自己持有时才删除，防止误删他人重新获取的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 已获取的锁
type Lock struct {
	client *Client
	key    string
	token  string
}

// AcquireLock 获取 key 对应的互斥锁，被占用时退避重试直到 ctx 结束
// ttl 到期后锁自动释放，持有者崩溃不会造成永久阻塞
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	fullKey := lockPrefix + key
	backoff := lockMinBackoff

	for {
		ok, err := c.rdb.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", pkgerrors.ErrLockTimeout, ctx.Err())
			}
			return nil, err
		}
		if ok {
			return &Lock{client: c, key: fullKey, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrLockTimeout, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < lockMaxBackoff {
			backoff *= 2
		}
	}
}

// Release 释放锁；锁已过期或被他人持有时返回 ErrLockNotHeld
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.ErrLockNotHeld
	}
	return nil
}

// ── 限流 ──

// CheckRateLimit 滑动窗口限流：window 内 key 的请求数不超过 limit 时返回 true
// 使用有序集合记录每次请求的时间戳，先清理窗口外记录再计数
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
