package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
	for _, c := range collectors() {
		_ = prometheus.DefaultRegisterer.Register(c)
	}
	_ = prometheus.DefaultRegisterer.Register(buildInfo)
}

// Init also registers the service collectors on reg. With on=false all
// Observe/Set calls become no-ops.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of provider calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source", "outcome"},
	)

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitrep_fetch_total",
			Help: "Category fetches by source, origin of the returned items and upstream outcome.",
		},
		[]string{"category", "source", "origin", "outcome"},
	)

	singleflightShared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitrep_singleflight_shared_total",
			Help: "Fetches that joined an in-flight provider call instead of starting one.",
		},
		[]string{"category"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitrep_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open).",
		},
		[]string{"source"},
	)

	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Cache backend operations by result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Cache backend operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	dataQuality = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitrep_data_quality",
			Help: "Current data quality per category (1 for the active quality).",
		},
		[]string{"category", "quality"},
	)

	warmCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitrep_warm_cycle_seconds",
			Help:    "Duration of one cache warming cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	warmJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitrep_warm_jobs_total",
			Help: "Cache warming jobs by category and result.",
		},
		[]string{"category", "result"},
	)

	riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitrep_region_risk_score",
			Help: "Last computed risk score per region.",
		},
		[]string{"region"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitrep_cache_invalidations_total",
			Help: "Cache invalidations by category and trigger.",
		},
		[]string{"category", "trigger"},
	)

	invalidationLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitrep_invalidation_lag_seconds",
			Help: "Age of the last applied invalidation event.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		fetchTotal, singleflightShared, breakerState,
		cacheOpsTotal, cacheOpDurationSeconds, cacheResults,
		dataQuality, warmCycleSeconds, warmJobsTotal,
		riskScore, invalidationsTotal, invalidationLag,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(source, outcome string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(source, outcome).Observe(durationSeconds)
}

func ObserveFetch(category, source, origin, outcome string) {
	if !enabled.Load() {
		return
	}
	fetchTotal.WithLabelValues(category, source, origin, outcome).Inc()
}

func IncSingleflightShared(category string) {
	if !enabled.Load() {
		return
	}
	singleflightShared.WithLabelValues(category).Inc()
}

func SetBreakerState(source string, state int) {
	if !enabled.Load() {
		return
	}
	breakerState.WithLabelValues(source).Set(float64(state))
}

// ObserveCacheOp records one backend round trip.
func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpsTotal.WithLabelValues(op, res).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit(tier string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheStale(tier string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(tier, "stale").Inc()
}

func IncCacheMiss(tier string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

var qualities = []string{"live", "cached", "stale", "unavailable"}

func SetDataQuality(category, quality string) {
	if !enabled.Load() {
		return
	}
	for _, q := range qualities {
		v := 0.0
		if q == quality {
			v = 1
		}
		dataQuality.WithLabelValues(category, q).Set(v)
	}
}

func ObserveWarmCycle(durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	warmCycleSeconds.Observe(durationSeconds)
}

func IncWarmJob(category, result string) {
	if !enabled.Load() {
		return
	}
	warmJobsTotal.WithLabelValues(category, result).Inc()
}

func SetRiskScore(region string, score float64) {
	if !enabled.Load() {
		return
	}
	riskScore.WithLabelValues(region).Set(score)
}

func IncInvalidation(category, trigger string) {
	if !enabled.Load() {
		return
	}
	if category == "" {
		category = "all"
	}
	invalidationsTotal.WithLabelValues(category, trigger).Inc()
}

func SetInvalidationLagSeconds(v float64) {
	if !enabled.Load() {
		return
	}
	invalidationLag.Set(v)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
