package database

import (
	"sync"
	"time"

	"osgb/pkg/cache"
	"osgb/pkg/config"
)

var (
	redisCacheInstance *cache.RedisCache
	redisCacheOnce     sync.Once
)

// GetRedisCache returns the process-wide redis cache. Its client also carries
// the realtime pub/sub traffic.
func GetRedisCache() *cache.RedisCache {
	redisCacheOnce.Do(func() {
		cfg := config.GetConfig()
		client := cache.NewClient(&cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisCacheInstance = cache.NewRedisCache(client, cfg.Redis.Prefix, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	})
	return redisCacheInstance
}

func CloseRedis() error {
	if redisCacheInstance != nil {
		return redisCacheInstance.Close()
	}
	return nil
}
