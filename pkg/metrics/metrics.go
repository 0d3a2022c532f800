package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AccessRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "access_requests_total", Help: "Access requests by outcome (granted, requested, duplicate, rejected, error)."},
		[]string{"outcome"},
	)
	AccessResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "access_resolutions_total", Help: "Pending-request resolutions by outcome (approved, denied, missing, error)."},
		[]string{"outcome"},
	)
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "cache_hits_total", Help: "Cache hits by key."},
		[]string{"key"},
	)
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "cache_misses_total", Help: "Cache misses by key."},
		[]string{"key"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "snmusic", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(AccessRequests)
	reg.MustRegister(AccessResolutions)
	reg.MustRegister(CacheHits)
	reg.MustRegister(CacheMisses)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
