// 包 store: 提供与 PostgreSQL 的数据访问层，包含几何记录的持久化与查询统计读写
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"geofence/internal/geofence"
	"geofence/internal/logger"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Store: 数据库访问入口，持有连接池并提供记录/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// row：_geofences 表的一行
type row struct {
	ID           int64
	Name         string
	Kind         string
	Geometry     []byte
	Metadata     []byte
	Cost         int64
	RegisteredAt time.Time
}

func encodeRecord(rec geofence.Record) (row, error) {
	g, err := geofence.EncodeGeometry(rec.Geometry)
	if err != nil {
		return row{}, err
	}
	meta := rec.Metadata
	if meta == nil {
		meta = geofence.Metadata{}
	}
	m, err := json.Marshal(meta)
	if err != nil {
		return row{}, errors.Wrap(err, "encode metadata")
	}
	return row{
		ID:           int64(rec.ID),
		Name:         meta.Name(),
		Kind:         rec.Geometry.Kind(),
		Geometry:     g,
		Metadata:     m,
		Cost:         int64(rec.Geometry.Cost()),
		RegisteredAt: rec.RegisteredAt,
	}, nil
}

func decodeRow(r row, opts geofence.DecodeOptions) (geofence.Record, error) {
	g, err := geofence.DecodeGeometry(r.Geometry, opts)
	if err != nil {
		return geofence.Record{}, errors.Wrapf(err, "geofence %d", r.ID)
	}
	meta := geofence.Metadata{}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return geofence.Record{}, errors.Wrapf(err, "geofence %d metadata", r.ID)
		}
	}
	return geofence.Record{
		ID:           geofence.ID(r.ID),
		Geometry:     g,
		Metadata:     meta,
		RegisteredAt: r.RegisteredAt,
	}, nil
}

// Save: 写入新记录；用作注册表的提交钩子，失败时注册整体回退
func (s *Store) Save(ctx context.Context, rec geofence.Record) error {
	r, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO _geofences(id, name, kind, geometry, metadata, cost, registered_at)
        VALUES($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.Name, r.Kind, string(r.Geometry), string(r.Metadata), r.Cost, r.RegisteredAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert geofence %d", r.ID)
	}
	logger.L().Debug().Int64("id", r.ID).Str("kind", r.Kind).Msg("db_geofence_saved")
	return nil
}

// Retire: 标记退役；行保留为墓碑，ID 高水位因此不会回退
func (s *Store) Retire(ctx context.Context, id geofence.ID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE _geofences SET retired_at=now() WHERE id=$1 AND retired_at IS NULL`, int64(id))
	if err != nil {
		return errors.Wrapf(err, "retire geofence %d", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(geofence.ErrNotFound, "geofence %d not active in store", id)
	}
	logger.L().Debug().Uint64("id", uint64(id)).Msg("db_geofence_retired")
	return nil
}

// Append: 离线导入时使用；在表锁内分配高水位之后的 ID
// 约束：服务运行期间导入的记录要到下次启动恢复时才可见
func (s *Store) Append(ctx context.Context, g geofence.Geometry, meta geofence.Metadata) (geofence.ID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `LOCK TABLE _geofences IN EXCLUSIVE MODE`); err != nil {
		return 0, errors.Wrap(err, "lock _geofences")
	}
	var top int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM _geofences`).Scan(&top); err != nil {
		return 0, errors.Wrap(err, "read high water")
	}
	rec := geofence.Record{ID: geofence.ID(top + 1), Geometry: g, Metadata: meta, RegisteredAt: time.Now().UTC()}
	r, err := encodeRecord(rec)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _geofences(id, name, kind, geometry, metadata, cost, registered_at)
        VALUES($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.Name, r.Kind, string(r.Geometry), string(r.Metadata), r.Cost, r.RegisteredAt,
	); err != nil {
		return 0, errors.Wrapf(err, "insert geofence %d", r.ID)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// LoadActive: 读取全部未退役记录，按 ID 升序
func (s *Store) LoadActive(ctx context.Context, opts geofence.DecodeOptions) ([]geofence.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, kind, geometry, metadata, cost, registered_at
        FROM _geofences WHERE retired_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "select geofences")
	}
	defer rows.Close()
	var out []geofence.Record
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Geometry, &r.Metadata, &r.Cost, &r.RegisteredAt); err != nil {
			return nil, err
		}
		rec, err := decodeRow(r, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HighWater: 历史上分配过的最大 ID（含墓碑）
func (s *Store) HighWater(ctx context.Context) (geofence.ID, error) {
	var top int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM _geofences`).Scan(&top); err != nil {
		return 0, errors.Wrap(err, "read high water")
	}
	return geofence.ID(top), nil
}

// RestoreInto: 启动时从数据库恢复注册表
func (s *Store) RestoreInto(ctx context.Context, reg *geofence.Registry, opts geofence.DecodeOptions) (int, error) {
	recs, err := s.LoadActive(ctx, opts)
	if err != nil {
		return 0, err
	}
	hw, err := s.HighWater(ctx)
	if err != nil {
		return 0, err
	}
	if err := reg.Restore(recs, hw); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// AddStats: 批量累加查询统计（总计与当日）；由服务定期刷写，不在查询路径上执行
func (s *Store) AddStats(ctx context.Context, queries, hits int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin stats")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE _geofence_stats_total
        SET total_queries=total_queries+$1, total_hits=total_hits+$2 WHERE id=1`, queries, hits); err != nil {
		return errors.Wrap(err, "update stats total")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _geofence_stats_daily(day, queries, hits) VALUES(current_date, $1, $2)
        ON CONFLICT (day) DO UPDATE SET queries=_geofence_stats_daily.queries+EXCLUDED.queries,
        hits=_geofence_stats_daily.hits+EXCLUDED.hits`, queries, hits); err != nil {
		return errors.Wrap(err, "upsert stats daily")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit stats")
	}
	logger.L().Debug().Int64("queries", queries).Int64("hits", hits).Msg("stats_flushed")
	return nil
}

// CacheEpoch: 读取（首次时生成）注册表世代，作为外部缓存键前缀
// 约束：与 _geofences 同库保存；库被重建时随之更换，旧缓存键自然失效
func (s *Store) CacheEpoch(ctx context.Context) (string, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _geofence_meta(key, value) VALUES('cache_epoch', $1)
        ON CONFLICT (key) DO NOTHING`, uuid.NewString()); err != nil {
		return "", errors.Wrap(err, "init cache epoch")
	}
	var epoch string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM _geofence_meta WHERE key='cache_epoch'`).Scan(&epoch); err != nil {
		return "", errors.Wrap(err, "read cache epoch")
	}
	return epoch, nil
}

// Totals: 统计返回结构，包含累计与当日查询次数
type Totals struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
	Hits  int64 `json:"hits"`
}

// GetTotals: 读取累计与当日查询次数，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	r1 := s.db.QueryRowContext(ctx, "SELECT total_queries, total_hits FROM _geofence_stats_total WHERE id=1")
	_ = r1.Scan(&t.Total, &t.Hits)
	r2 := s.db.QueryRowContext(ctx, "SELECT queries FROM _geofence_stats_daily WHERE day=current_date")
	_ = r2.Scan(&t.Today)
	logger.L().Debug().Int64("total", t.Total).Int64("today", t.Today).Msg("stats_totals")
	return &t, nil
}
