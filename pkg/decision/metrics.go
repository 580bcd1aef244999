package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iamcore",
		Subsystem: "decision",
		Name:      "checks_total",
		Help:      "Access decisions by outcome (allow, deny, error).",
	}, []string{"outcome"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iamcore",
		Subsystem: "decision",
		Name:      "permission_cache_total",
		Help:      "Permission cache lookups by result (hit, miss).",
	}, []string{"result"})
)

func observeDecision(outcome string) {
	decisionsTotal.WithLabelValues(outcome).Inc()
}

func observeCache(hit bool) {
	if hit {
		cacheHitsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheHitsTotal.WithLabelValues("miss").Inc()
}
