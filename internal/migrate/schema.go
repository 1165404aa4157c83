package migrate

import (
	"database/sql"

	"geofence/internal/logger"
)

// 背景：首次运行自动创建所需表与索引，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _geofences (
            id BIGINT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL,
            geometry JSONB NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            cost BIGINT NOT NULL,
            registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            retired_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_geofences_active ON _geofences(id) WHERE retired_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_geofences_name ON _geofences(name)`,
		`CREATE TABLE IF NOT EXISTS _geofence_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0,
            total_hits BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _geofence_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0,
            hits BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _geofence_meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`INSERT INTO _geofence_stats_total(id, total_queries, total_hits)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug().Int("idx", i).Msg("schema_exec")
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug().Msg("schema_done")
	return nil
}
