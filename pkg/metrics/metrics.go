package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 判定结果标签
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
	ResultError = "error"
)

// Metrics 授权相关的 Prometheus 指标
type Metrics struct {
	Registry *prometheus.Registry

	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzErrorsTotal      *prometheus.CounterVec
	ResolveDuration       prometheus.Histogram
	PermissionCacheHits   prometheus.Counter
	PermissionCacheMisses prometheus.Counter
	CacheInvalidations    *prometheus.CounterVec
}

// NewMetrics 创建并注册指标，registry 为空时新建
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		Registry: registry,
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_authz_decisions_total",
				Help: "Authorization decisions by operation and result",
			},
			[]string{"operation", "result"},
		),
		AuthzErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_authz_errors_total",
				Help: "Permission lookups that failed closed",
			},
			[]string{"operation"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crmhub_permission_resolve_duration_seconds",
				Help:    "Time spent resolving a user's permission set",
				Buckets: prometheus.DefBuckets,
			},
		),
		PermissionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmhub_permission_cache_hits_total",
				Help: "Permission cache hits",
			},
		),
		PermissionCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmhub_permission_cache_misses_total",
				Help: "Permission cache misses",
			},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmhub_permission_cache_invalidations_total",
				Help: "Permission cache invalidations by trigger",
			},
			[]string{"trigger"},
		),
	}

	registry.MustRegister(
		m.AuthzDecisionsTotal,
		m.AuthzErrorsTotal,
		m.ResolveDuration,
		m.PermissionCacheHits,
		m.PermissionCacheMisses,
		m.CacheInvalidations,
	)
	return m
}

// Decision 记录一次判定
func (m *Metrics) Decision(operation string, allowed bool) {
	if m == nil {
		return
	}
	result := ResultDeny
	if allowed {
		result = ResultAllow
	}
	m.AuthzDecisionsTotal.WithLabelValues(operation, result).Inc()
}

// Failure 记录一次 fail-closed
func (m *Metrics) Failure(operation string) {
	if m == nil {
		return
	}
	m.AuthzErrorsTotal.WithLabelValues(operation).Inc()
	m.AuthzDecisionsTotal.WithLabelValues(operation, ResultError).Inc()
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.PermissionCacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.PermissionCacheMisses.Inc()
	}
}

func (m *Metrics) Invalidated(trigger string, n int) {
	if m != nil && n > 0 {
		m.CacheInvalidations.WithLabelValues(trigger).Add(float64(n))
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
