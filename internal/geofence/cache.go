package geofence

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// QueryKey：查询结果缓存键
// 约束：使用定点原始整数，命中即与重新计算的结果完全一致
type QueryKey struct {
	ID ID
	X  int64
	Y  int64
}

func KeyOf(id ID, pt Coordinate) QueryKey {
	return QueryKey{ID: id, X: pt.X.Raw(), Y: pt.Y.Raw()}
}

// RedisKey：外部缓存使用的键
// 约束：ID 只在同一注册表世代内唯一（纯内存运行每次重启从 1 开始），epoch 标识世代，不同世代的键互不可见
func (k QueryKey) RedisKey(epoch string) string {
	return "geofence:q:" + epoch + ":" + strconv.FormatUint(uint64(k.ID), 10) + ":" +
		strconv.FormatInt(k.X, 10) + ":" + strconv.FormatInt(k.Y, 10)
}

// LRU：进程内查询结果缓存
// 背景：热点坐标在短周期内重复查询，大几何的 O(顶点) 判定可由缓存跳过；几何不可变，缓存不会失真。
// 约束：容量与 TTL 由调用方给定；capacity<=0 时不缓存
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[QueryKey]*list.Element
	now  func() time.Time
}

type lruEntry struct {
	k   QueryKey
	v   Classification
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[QueryKey]*list.Element), now: time.Now}
}

func (c *LRU) Get(k QueryKey) (Classification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return Outside, false
	}
	it := e.Value.(lruEntry)
	if c.ttl > 0 && !c.now().Before(it.exp) {
		c.lst.Remove(e)
		delete(c.dict, k)
		return Outside, false
	}
	c.lst.MoveToFront(e)
	return it.v, true
}

func (c *LRU) Set(k QueryKey, v Classification) {
	if c.cap <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := lruEntry{k: k, v: v, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = ent
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(ent)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		c.lst.Remove(back)
		delete(c.dict, back.Value.(lruEntry).k)
	}
}

// Purge：移除某个 ID 的全部条目
func (c *LRU) Purge(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.dict {
		if k.ID == id {
			c.lst.Remove(e)
			delete(c.dict, k)
		}
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
