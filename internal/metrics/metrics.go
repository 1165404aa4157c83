package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_queries_total",
		Help: "Total containment queries by classification",
	}, []string{"classification"})
	QueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofence_query_duration_ms",
		Help:    "Containment query duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	})
	QueryErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_query_errors_total",
		Help: "Total failed queries by reason",
	}, []string{"reason"})
	OverflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_overflow_total",
		Help: "Total fixed-point overflows reported by the engine",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_cache_hits_total",
		Help: "Total query cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_cache_misses_total",
		Help: "Total query cache misses across all tiers",
	})
	RegisterTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_register_total",
		Help: "Total register attempts by result",
	}, []string{"result"})
	RemoveTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_remove_total",
		Help: "Total retired geometries",
	})
	Geometries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geofence_geometries",
		Help: "Currently registered geometries",
	})
	GeometryCost = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofence_geometry_cost",
		Help:    "Edge count of registered geometries",
		Buckets: prometheus.ExponentialBuckets(4, 4, 8),
	})
	IPLocateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_ip_locate_total",
		Help: "IP geolocation lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(QueryErrorsTotal)
	prometheus.MustRegister(OverflowTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RegisterTotal)
	prometheus.MustRegister(RemoveTotal)
	prometheus.MustRegister(Geometries)
	prometheus.MustRegister(GeometryCost)
	prometheus.MustRegister(IPLocateTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
