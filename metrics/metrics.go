// Package metrics exposes the fixed observability taxonomy of named
// counters, gauges, and histograms the payload builder and pre-signer
// produce, backed by github.com/prometheus/client_golang.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// IngressPayloadCacheSize tracks the live size of the payload
	// builder's ingress fingerprint cache.
	IngressPayloadCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "replica",
		Subsystem: "payload_builder",
		Name:      "ingress_payload_cache_size",
		Help:      "Number of entries currently held in the ingress payload cache.",
	})

	// PastPayloadsLength tracks how many ancestor payloads were
	// considered on the most recent GetPayload/ValidatePayload call.
	PastPayloadsLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "replica",
		Subsystem: "payload_builder",
		Name:      "past_payloads_length",
		Help:      "Number of past payloads considered on the most recent call.",
	})

	// GetPayloadDuration times GetPayload calls.
	GetPayloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "replica",
		Subsystem: "payload_builder",
		Name:      "get_payload_duration_seconds",
		Help:      "Time spent in GetPayload.",
	})

	// ValidatePayloadDuration times ValidatePayload calls.
	ValidatePayloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "replica",
		Subsystem: "payload_builder",
		Name:      "validate_payload_duration_seconds",
		Help:      "Time spent in ValidatePayload.",
	})

	// OnStateChangeDuration times each on_state_change pass, labeled by
	// pass name (send_dealings, validate_dealings, send_support,
	// validate_support, purge).
	OnStateChangeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "replica",
		Subsystem: "pre_signer",
		Name:      "on_state_change_duration_seconds",
		Help:      "Time spent in each on_state_change pass.",
	}, []string{"pass"})

	// PreSignErrorsTotal counts pre-signer failures, keyed by a stable
	// string reason tag (never a fatal condition; see the propagation
	// policy in the error handling design).
	PreSignErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Subsystem: "pre_signer",
		Name:      "errors_total",
		Help:      "Pre-signer failures, keyed by reason.",
	}, []string{"reason"})

	// PreSignEventsTotal counts pre-signer lifecycle events, keyed by a
	// stable string event tag (e.g. dealing_sent, support_sent, purged).
	PreSignEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Subsystem: "pre_signer",
		Name:      "events_total",
		Help:      "Pre-signer lifecycle events, keyed by event tag.",
	}, []string{"event"})
)

// MustRegister registers every metric in this package against reg. Panics
// if a metric with a colliding name is already registered, matching
// prometheus.MustRegister's own contract.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		IngressPayloadCacheSize,
		PastPayloadsLength,
		GetPayloadDuration,
		ValidatePayloadDuration,
		OnStateChangeDuration,
		PreSignErrorsTotal,
		PreSignEventsTotal,
	)
}

// Timer times a block of work and observes it into obs on Stop.
type Timer struct {
	start time.Time
	obs   prometheus.Observer
}

// NewTimer starts a Timer that will observe its elapsed duration into obs
// when Stop is called.
func NewTimer(obs prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), obs: obs}
}

// Stop records the elapsed time since NewTimer.
func (t *Timer) Stop() {
	t.obs.Observe(time.Since(t.start).Seconds())
}
