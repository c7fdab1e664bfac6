package database

import (
	"invitegate/pkg/config"
	"invitegate/pkg/lock"
	"sync"
)

var (
	redisLockerInstance *lock.RedisLocker
	redisLockerOnce     sync.Once
)

// GetLocker 获取Redis锁的单例实例
func GetLocker() *lock.RedisLocker {
	redisLockerOnce.Do(func() {
		cfg := config.GetConfig()
		redisLockerInstance = lock.NewRedisLocker(&lock.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Lock.TTL,
		})
	})
	return redisLockerInstance
}

// CloseLocker 关闭Redis连接
func CloseLocker() error {
	if redisLockerInstance != nil {
		return redisLockerInstance.Close()
	}
	return nil
}
