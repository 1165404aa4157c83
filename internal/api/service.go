package api

import (
	"context"
	"time"

	"geofence/internal/geofence"
	"geofence/internal/locate"
	"geofence/internal/logger"
	"geofence/internal/metrics"
	"geofence/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Persister：注册/退役的持久化钩子，在注册表写锁内执行
type Persister interface {
	Save(ctx context.Context, rec geofence.Record) error
	Retire(ctx context.Context, id geofence.ID) error
}

// Stats：查询统计的持久层；查询路径只做进程内累加，由 FlushStats 批量写入
type Stats interface {
	AddStats(ctx context.Context, queries, hits int64) error
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// Locator：IP 到坐标
type Locator interface {
	Lookup(ip string) (locate.Location, error)
}

// Options：服务依赖；除注册表外均可为空
type Options struct {
	Policy    geofence.BoundaryPolicy
	Decode    geofence.DecodeOptions
	CacheSize int
	CacheTTL  time.Duration
	Redis     *redis.Client
	RedisTTL  time.Duration
	// Epoch：Redis 键的注册表世代；为空时每个 Service 生成随机值
	Epoch     string
	Persister Persister
	Stats     Stats
	Locator   Locator
}

// 文档注释：围栏服务
// 背景：在注册表之上叠加持久化、两级查询缓存（进程内 LRU + Redis）与指标；HTTP 层只做参数解析与序列化。
// 约束：
//   - 查询先确认 ID 仍在注册表中，再读缓存；已退役 ID 不会命中残留缓存
//   - 缓存键使用定点原始整数，命中结果与重新计算完全一致
//   - Redis 键带注册表世代，重启或共享 Redis 的其他实例分配到同一 ID 时不会读到对方的结果
//   - Redis 不可用时降级为直接计算，不返回错误
type Service struct {
	reg      *geofence.Registry
	opts     Options
	lru      *geofence.LRU
	redisTTL time.Duration
	epoch    string
	stats    statsBuffer
}

func NewService(reg *geofence.Registry, opts Options) *Service {
	ttl := opts.RedisTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	epoch := opts.Epoch
	if epoch == "" {
		epoch = uuid.NewString()
	}
	return &Service{reg: reg, opts: opts, lru: geofence.NewLRU(opts.CacheSize, opts.CacheTTL), redisTTL: ttl, epoch: epoch}
}

// Epoch：当前使用的 Redis 键世代
func (s *Service) Epoch() string { return s.epoch }

func (s *Service) Registry() *geofence.Registry { return s.reg }

func (s *Service) Policy() geofence.BoundaryPolicy { return s.opts.Policy }

// Register：注册几何；配置了持久化时在同一临界区内写库
func (s *Service) Register(ctx context.Context, g geofence.Geometry, meta geofence.Metadata) (geofence.ID, error) {
	var commit func(geofence.Record) error
	if p := s.opts.Persister; p != nil {
		commit = func(rec geofence.Record) error { return p.Save(ctx, rec) }
	}
	id, err := s.reg.RegisterWith(g, meta, commit)
	if err != nil {
		metrics.RegisterTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.RegisterTotal.WithLabelValues("ok").Inc()
	metrics.GeometryCost.Observe(float64(g.Cost()))
	metrics.Geometries.Set(float64(s.reg.Len()))
	return id, nil
}

// Remove：退役 ID 并清理进程内缓存
func (s *Service) Remove(ctx context.Context, id geofence.ID) error {
	var commit func(geofence.ID) error
	if p := s.opts.Persister; p != nil {
		commit = func(id geofence.ID) error { return p.Retire(ctx, id) }
	}
	if err := s.reg.RemoveWith(id, commit); err != nil {
		return err
	}
	s.lru.Purge(id)
	metrics.RemoveTotal.Inc()
	metrics.Geometries.Set(float64(s.reg.Len()))
	return nil
}

// Query：带缓存的三态判定
func (s *Service) Query(ctx context.Context, id geofence.ID, pt geofence.Coordinate) (geofence.Classification, error) {
	begin := time.Now()
	defer func() { metrics.QueryDurationMs.Observe(float64(time.Since(begin).Microseconds()) / 1000) }()

	c, err := s.classify(ctx, id, pt)
	if err != nil {
		switch {
		case errors.Is(err, geofence.ErrNotFound):
			metrics.QueryErrorsTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, geofence.ErrOverflow):
			metrics.OverflowTotal.Inc()
			metrics.QueryErrorsTotal.WithLabelValues("overflow").Inc()
		default:
			metrics.QueryErrorsTotal.WithLabelValues("internal").Inc()
		}
		return geofence.Outside, err
	}
	metrics.QueriesTotal.WithLabelValues(c.String()).Inc()
	if s.opts.Stats != nil {
		s.stats.add(s.opts.Policy.Contains(c))
	}
	return c, nil
}

func (s *Service) classify(ctx context.Context, id geofence.ID, pt geofence.Coordinate) (geofence.Classification, error) {
	if _, err := s.reg.Cost(id); err != nil {
		return geofence.Outside, err
	}
	key := geofence.KeyOf(id, pt)
	if c, ok := s.lru.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return c, nil
	}
	if c, ok := s.redisGet(ctx, key); ok {
		metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
		s.lru.Set(key, c)
		return c, nil
	}
	metrics.CacheMissesTotal.Inc()

	c, err := s.reg.Query(id, pt)
	if err != nil {
		return geofence.Outside, err
	}
	s.lru.Set(key, c)
	s.redisSet(ctx, key, c)
	return c, nil
}

// LocateIP：解析 IP 坐标后判定
func (s *Service) LocateIP(ctx context.Context, id geofence.ID, ip string) (locate.Location, geofence.Classification, error) {
	if s.opts.Locator == nil {
		return locate.Location{}, geofence.Outside, errLocatorDisabled
	}
	loc, err := s.opts.Locator.Lookup(ip)
	if err != nil {
		metrics.IPLocateTotal.WithLabelValues("miss").Inc()
		return locate.Location{}, geofence.Outside, err
	}
	metrics.IPLocateTotal.WithLabelValues("hit").Inc()
	c, err := s.Query(ctx, id, loc.Point)
	return loc, c, err
}

// LoadSeeds：注册表为空时从 GeoJSON 文件加载初始几何
func (s *Service) LoadSeeds(ctx context.Context, paths []string) (int, error) {
	if s.reg.Len() > 0 || len(paths) == 0 {
		return 0, nil
	}
	n := 0
	for _, p := range paths {
		fs, err := geofence.LoadFile(p, s.opts.Decode)
		if err != nil {
			return n, err
		}
		for _, f := range fs {
			if _, err := s.Register(ctx, f.Geometry, f.Metadata); err != nil {
				return n, errors.Wrapf(err, "seed %s", f.Name)
			}
			n++
		}
	}
	logger.L().Info().Int("geofences", n).Int("files", len(paths)).Msg("seed_loaded")
	return n, nil
}

func (s *Service) redisGet(ctx context.Context, key geofence.QueryKey) (geofence.Classification, bool) {
	rc := s.opts.Redis
	if rc == nil {
		return geofence.Outside, false
	}
	k := key.RedisKey(s.epoch)
	v, err := rc.Get(ctx, k).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug().Err(err).Str("key", k).Msg("redis_get_error")
		}
		return geofence.Outside, false
	}
	var c geofence.Classification
	if err := c.UnmarshalText([]byte(v)); err != nil {
		return geofence.Outside, false
	}
	return c, true
}

func (s *Service) redisSet(ctx context.Context, key geofence.QueryKey, c geofence.Classification) {
	rc := s.opts.Redis
	if rc == nil {
		return
	}
	k := key.RedisKey(s.epoch)
	if err := rc.Set(ctx, k, c.String(), s.redisTTL).Err(); err != nil {
		logger.L().Debug().Err(err).Str("key", k).Msg("redis_set_error")
	}
}
