// 包 utils：数据库、Redis 与证书等启动期工具，统一环境变量读取
package utils

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"time"

	"geofence/internal/logger"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// BuildPostgresDSNFromEnv：由 PG_* 环境变量拼装 DSN，缺省值面向本地开发
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	host := envOr("PG_HOST", "localhost")
	port := envOr("PG_PORT", "5432")
	user := envOr("PG_USER", "postgres")
	pass := os.Getenv("PG_PASSWORD")
	db := envOr("PG_DB", "geofence")
	ssl := envOr("PG_SSLMODE", "disable")
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

// OpenPostgresFromEnv：打开连接池并在超时内完成一次 Ping
// 约束：PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 解析失败时沿用默认 50/25
func OpenPostgresFromEnv(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(envInt("PG_MAX_OPEN_CONNS", 50))
	db.SetMaxIdleConns(envInt("PG_MAX_IDLE_CONNS", 25))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	logger.L().Debug().Int("max_open", envInt("PG_MAX_OPEN_CONNS", 50)).Msg("db_pool_ready")
	return db, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			return n
		}
	}
	return def
}
