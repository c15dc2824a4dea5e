package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"signalflow/conf"
)

var redisClient *redis.Client

// InitRedis 初始化redisClient
func InitRedis(redisCfg conf.RedisConfig) error {
	redisClient = redis.NewClient(&redis.Options{
		DB:           redisCfg.Db,
		Addr:         redisCfg.Addr,
		Password:     redisCfg.Password,
		PoolSize:     redisCfg.PoolSize,
		MinIdleConns: redisCfg.MinIdleConns,
		IdleTimeout:  time.Duration(redisCfg.IdleTimeout) * time.Second,
	})
	_, err := redisClient.Ping(context.TODO()).Result()
	return err
}

func GetRedisClient() *redis.Client {
	if nil == redisClient {
		panic("Please initialize the Redis client first!")
	}
	return redisClient
}

// SetNXKey 幂等占位：key不存在时写入并返回true，已存在返回false。
// 多实例部署时用来跨进程去重信号
func SetNXKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if redisClient == nil {
		return true, nil
	}
	return redisClient.SetNX(ctx, key, 1, ttl).Result()
}

// 关闭redis client
func CloseRedis() {
	if nil != redisClient {
		_ = redisClient.Close()
	}
}
