package api

import (
	"context"
	"sync/atomic"
	"time"

	"geofence/internal/logger"
	"geofence/internal/store"
)

// statsBuffer：查询统计的进程内累加
// 约束：两个计数分别交换，批次边界上命中数可能早于对应查询数一批入库，累计值不受影响
type statsBuffer struct {
	queries atomic.Int64
	hits    atomic.Int64
}

func (b *statsBuffer) add(contained bool) {
	b.queries.Add(1)
	if contained {
		b.hits.Add(1)
	}
}

func (b *statsBuffer) take() (int64, int64) {
	return b.queries.Swap(0), b.hits.Swap(0)
}

func (b *statsBuffer) pending() (int64, int64) {
	return b.queries.Load(), b.hits.Load()
}

// FlushStats：将累计的查询统计写入持久层；失败时计数退回，下一次重试
func (s *Service) FlushStats(ctx context.Context) error {
	st := s.opts.Stats
	if st == nil {
		return nil
	}
	q, h := s.stats.take()
	if q == 0 && h == 0 {
		return nil
	}
	if err := st.AddStats(ctx, q, h); err != nil {
		s.stats.queries.Add(q)
		s.stats.hits.Add(h)
		return err
	}
	return nil
}

// RunStatsFlusher：按周期刷写统计，ctx 结束时做最后一次刷写后返回
func (s *Service) RunStatsFlusher(ctx context.Context, every time.Duration) {
	if s.opts.Stats == nil {
		return
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.FlushStats(ctx); err != nil {
				logger.L().Warn().Err(err).Msg("stats_flush_error")
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.FlushStats(final); err != nil {
				logger.L().Error().Err(err).Msg("stats_final_flush_error")
			}
			cancel()
			return
		}
	}
}

// totals：已入库统计加上尚未刷写的部分
func (s *Service) totals(ctx context.Context) *store.Totals {
	t, err := s.opts.Stats.GetTotals(ctx)
	if err != nil || t == nil {
		t = &store.Totals{}
	}
	q, h := s.stats.pending()
	t.Total += q
	t.Today += q
	t.Hits += h
	return t
}
