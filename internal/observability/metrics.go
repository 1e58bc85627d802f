// Package observability exposes prometheus metrics for the agent gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	agentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_agent_requests_total",
			Help: "Total agent requests by classified intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)

	auditVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_audit_verdicts_total",
			Help: "Audit verdicts by decision.",
		},
		[]string{"decision"},
	)

	llmFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_llm_failures_total",
			Help: "Model-call failures by pipeline stage.",
		},
		[]string{"stage"},
	)

	agentRequestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollcall_agent_request_duration_seconds",
			Help:    "End-to-end agent request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		agentRequestsTotal,
		auditVerdictsTotal,
		llmFailuresTotal,
		agentRequestDurationSeconds,
	)
}

// ObserveAgentRequest records one completed agent request.
func ObserveAgentRequest(intent, outcome string, seconds float64) {
	agentRequestsTotal.WithLabelValues(intent, outcome).Inc()
	agentRequestDurationSeconds.Observe(seconds)
}

// ObserveAuditVerdict records one audit decision.
func ObserveAuditVerdict(decision string) {
	auditVerdictsTotal.WithLabelValues(decision).Inc()
}

// ObserveLLMFailure records a failed model call for a pipeline stage
// (generate, summarize or write).
func ObserveLLMFailure(stage string) {
	llmFailuresTotal.WithLabelValues(stage).Inc()
}
