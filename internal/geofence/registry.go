package geofence

import (
	"sort"
	"sync"
	"time"

	"geofence/internal/logger"

	"github.com/pkg/errors"
)

// ID：注册时分配的几何标识
// 约束：单调递增，移除后不复用
type ID uint64

// Metadata：调用方自定义的元数据
type Metadata map[string]string

func (m Metadata) clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Name：约定的名称字段
func (m Metadata) Name() string { return m["name"] }

// Record：注册表持有的不可变记录
type Record struct {
	ID           ID
	Geometry     Geometry
	Metadata     Metadata
	RegisteredAt time.Time
}

// Registry：几何注册表
// 约束：注册/移除/恢复互斥；查询只在解析记录时持读锁，判定过程不持锁
type Registry struct {
	mu      sync.RWMutex
	records map[ID]*Record
	// next：下一个待分配的 ID，从 1 开始
	next ID
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[ID]*Record), next: 1}
}

// Register：保存几何并分配新 ID
func (r *Registry) Register(g Geometry, meta Metadata) (ID, error) {
	return r.RegisterWith(g, meta, nil)
}

// RegisterWith：commit 在写锁内、发布前执行（通常为持久化）
// 约束：commit 失败则记录不可见；已消耗的 ID 不会再分配
func (r *Registry) RegisterWith(g Geometry, meta Metadata, commit func(Record) error) (ID, error) {
	if g == nil {
		return 0, errors.Wrap(ErrInvalidGeometry, "nil geometry")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	rec := &Record{ID: id, Geometry: g, Metadata: meta.clone(), RegisteredAt: time.Now().UTC()}
	if commit != nil {
		if err := commit(*rec); err != nil {
			logger.L().Warn().Err(err).Uint64("id", uint64(id)).Msg("geofence_register_commit_error")
			return 0, errors.Wrapf(err, "commit geometry %d", id)
		}
	}
	r.records[id] = rec
	logger.L().Debug().
		Uint64("id", uint64(id)).
		Str("kind", g.Kind()).
		Uint64("cost", g.Cost()).
		Msg("geofence_register")
	return id, nil
}

func (r *Registry) lookup(id ID) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	next := r.next
	r.mu.RUnlock()
	if ok {
		return rec, nil
	}
	if id > 0 && id < next {
		return nil, errors.Wrapf(ErrNotFound, "geometry %d was retired or never committed", id)
	}
	return nil, errors.Wrapf(ErrNotFound, "geometry %d", id)
}

// Query：判定点相对已注册几何的位置
// 约束：结果只取决于（已存几何，点），相同参数重复调用结果一致
func (r *Registry) Query(id ID, pt Coordinate) (Classification, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Outside, err
	}
	c, err := rec.Geometry.Locate(pt)
	if err != nil {
		logger.L().Error().
			Err(err).
			Uint64("id", uint64(id)).
			Str("point", pt.String()).
			Msg("geofence_query_overflow")
		return Outside, errors.Wrapf(err, "query geometry %d", id)
	}
	return c, nil
}

// Contains：按边界策略折算的包含判定
func (r *Registry) Contains(id ID, pt Coordinate, policy BoundaryPolicy) (bool, error) {
	c, err := r.Query(id, pt)
	if err != nil {
		return false, err
	}
	return policy.Contains(c), nil
}

// Remove：永久退役 ID；之后的查询返回 ErrNotFound 而非 Outside
func (r *Registry) Remove(id ID) error {
	return r.RemoveWith(id, nil)
}

// RemoveWith：commit 在写锁内、删除前执行
func (r *Registry) RemoveWith(id ID, commit func(ID) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return errors.Wrapf(ErrNotFound, "geometry %d", id)
	}
	if commit != nil {
		if err := commit(id); err != nil {
			return errors.Wrapf(err, "commit removal %d", id)
		}
	}
	delete(r.records, id)
	logger.L().Debug().Uint64("id", uint64(id)).Msg("geofence_remove")
	return nil
}

// Get：返回记录副本
func (r *Registry) Get(id ID) (Record, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Record{}, err
	}
	out := *rec
	out.Metadata = rec.Metadata.clone()
	return out, nil
}

// Cost：查询前可得的计费上限
func (r *Registry) Cost(id ID) (uint64, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return rec.Geometry.Cost(), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// IDs：升序的现存 ID
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	ids := make([]ID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Restore：从持久化记录恢复，保留原 ID；只能用于尚未分配过 ID 的注册表
// 约束：highWater 为历史上分配过的最大 ID（含已退役）；此后分配从两者最大值之后继续
func (r *Registry) Restore(records []Record, highWater ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next != 1 {
		return errors.New("restore: registry already allocated ids")
	}
	staged := make(map[ID]*Record, len(records))
	top := highWater
	for i := range records {
		rec := records[i]
		if rec.ID == 0 {
			return errors.Wrap(ErrInvalidGeometry, "restore record without id")
		}
		if rec.Geometry == nil {
			return errors.Wrapf(ErrInvalidGeometry, "restore record %d without geometry", rec.ID)
		}
		if _, dup := staged[rec.ID]; dup {
			return errors.Errorf("restore: duplicate id %d", rec.ID)
		}
		rec.Metadata = rec.Metadata.clone()
		staged[rec.ID] = &rec
		if rec.ID > top {
			top = rec.ID
		}
	}
	for id, rec := range staged {
		r.records[id] = rec
	}
	if top+1 > r.next {
		r.next = top + 1
	}
	logger.L().Info().Int("records", len(staged)).Uint64("next_id", uint64(r.next)).Msg("geofence_restore")
	return nil
}
