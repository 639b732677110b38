package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PromotionFallbackTotal counts lines priced without their promotion because the lookup failed.
	PromotionFallbackTotal *prometheus.CounterVec
	// PromotionCacheTotal counts promotion cache lookups by result.
	PromotionCacheTotal *prometheus.CounterVec
	// PromotionTransitionTotal counts processed promotion start and end boundaries.
	PromotionTransitionTotal *prometheus.CounterVec
	// CartRepriceTotal counts full cart reprices by triggering operation.
	CartRepriceTotal *prometheus.CounterVec
	// QuoteLinesTotal counts quoted lines by outcome.
	QuoteLinesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics builds the domain collectors, registers them on reg
// and points the package counters at them. Registering again on the same
// registry rebinds to the collectors already there, so counts carry over; a
// fresh registry starts from zero.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	PromotionFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotion_fallback_total",
		Help:      "Lines priced at base price because promotion resolution failed.",
	}, []string{"reason"})
	PromotionCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotion_cache_total",
		Help:      "Promotion cache lookups by result.",
	}, []string{"result"})
	PromotionTransitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotion_transition_total",
		Help:      "Promotion boundaries processed by the worker.",
	}, []string{"transition"})
	CartRepriceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_reprice_total",
		Help:      "Full cart reprices by operation.",
	}, []string{"operation"})
	QuoteLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_lines_total",
		Help:      "Quoted lines by pricing outcome.",
	}, []string{"outcome"})

	for _, vec := range []**prometheus.CounterVec{
		&PromotionFallbackTotal,
		&PromotionCacheTotal,
		&PromotionTransitionTotal,
		&CartRepriceTotal,
		&QuoteLinesTotal,
	} {
		target := vec
		mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				*target = v
			}
		})
	}
}

// IncCounter increments vec for label values when the vec has been registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
