package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisLocker 基于Redis SETNX的分布式互斥锁
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config Redis锁配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // 锁自动过期时间，防止持有者崩溃后死锁
}

// 释放锁时先比对持有者标识，避免误删他人的锁
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// NewRedisLocker 创建Redis锁实例
func NewRedisLocker(cfg *Config) *RedisLocker {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "invitegate"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Acquire 轮询SETNX直到拿到锁或超出等待时间
func (l *RedisLocker) Acquire(key string, wait time.Duration) (func(), error) {
	ctx := context.Background()
	lockKey := fmt.Sprintf("%s:lock:%s", l.prefix, key)
	owner := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, owner, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				l.client.Eval(ctx, releaseScript, []string{lockKey}, owner)
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Ping 测试Redis连接
func (l *RedisLocker) Ping() error {
	return l.client.Ping(context.Background()).Err()
}

// Close 关闭Redis连接
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
