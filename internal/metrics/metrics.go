// Package metrics exposes Prometheus instrumentation for the moderation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActionsTotal counts enforcement actions, labeled by action and outcome
	// ("ok" or the platform error kind).
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_actions_total",
		Help: "Moderation actions issued against the chat platform",
	}, []string{"action", "outcome"})

	// FloodTriggers counts flood threshold crossings.
	FloodTriggers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_flood_triggers_total",
		Help: "Number of times a user crossed the flood limit",
	})

	// BlacklistHits counts deleted messages that matched a blacklisted word.
	BlacklistHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_blacklist_hits_total",
		Help: "Messages removed by the blacklist filter",
	})

	// WarningsIssued counts warnings, labeled by whether they escalated.
	WarningsIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_warnings_total",
		Help: "Warnings issued",
	}, []string{"escalated"})

	// AuditFailures counts audit entries that could not be stored.
	AuditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_audit_failures_total",
		Help: "Audit log writes that failed",
	})

	// MessageLatency records time spent evaluating one inbound message.
	MessageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupguard_message_latency_seconds",
		Help:    "Message moderation latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ActionsTotal,
		FloodTriggers,
		BlacklistHits,
		WarningsIssued,
		AuditFailures,
		MessageLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
