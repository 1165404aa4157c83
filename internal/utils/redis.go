package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"geofence/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：使用地址与密码打开 Redis 客户端
// 背景：保留直接传入参数的能力，用于测试与手工注入场景
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// OpenRedisFromEnv：从环境变量打开 Redis 客户端，支持 REDIS_DB 选择
// 约束：REDIS_ENABLED=false 时返回 nil；REDIS_DB 解析失败时回退到 0；Ping 失败时同样返回 nil，查询仅使用进程内缓存
func OpenRedisFromEnv(ctx context.Context) *redis.Client {
	if os.Getenv("REDIS_ENABLED") == "false" {
		logger.L().Info().Msg("redis_disabled")
		return nil
	}
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	logger.L().Debug().Str("addr", addr).Int("db", db).Msg("redis_env")
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.L().Error().Err(err).Str("addr", addr).Msg("redis_ping_error")
		_ = rc.Close()
		return nil
	}
	logger.L().Info().Str("addr", addr).Msg("redis_ping_ok")
	return rc
}
