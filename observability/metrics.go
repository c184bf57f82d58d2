package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Flow labels used across engine and gateway instrumentation.
const (
	FlowIssuance = "issuance"
	FlowTransfer = "transfer"
)

var (
	rewardsMetricsOnce sync.Once
	rewardsRegistry    *RewardsMetrics

	gatewayMetricsOnce sync.Once
	gatewayRegistry    *GatewayMetrics
)

// RewardsMetrics wraps collectors tracking reward engine health.
type RewardsMetrics struct {
	accruals   *prometheus.CounterVec
	started    *prometheus.CounterVec
	completed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	violations *prometheus.CounterVec
}

// Rewards exposes the lazily initialised metrics registry for the reward
// engine.
func Rewards() *RewardsMetrics {
	rewardsMetricsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "accruals_total",
				Help:      "Contribution events accrued, segmented by contribution category.",
			}, []string{"contribution"}),
			started: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "flows_started_total",
				Help:      "Reward flows started, segmented by flow.",
			}, []string{"flow"}),
			completed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "flows_completed_total",
				Help:      "Reward flows settled, segmented by flow.",
			}, []string{"flow"}),
			failed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "flows_failed_total",
				Help:      "Reward flows terminated, segmented by flow and failing step.",
			}, []string{"flow", "step"}),
			skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "settlements_skipped_total",
				Help:      "Successful external calls with no unpaid record to settle.",
			}, []string{"flow"}),
			violations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "rewards",
				Name:      "protocol_violations_total",
				Help:      "Continuations resumed with an unexpected outstanding call.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			rewardsRegistry.accruals,
			rewardsRegistry.started,
			rewardsRegistry.completed,
			rewardsRegistry.failed,
			rewardsRegistry.skipped,
			rewardsRegistry.violations,
		)
	})
	return rewardsRegistry
}

// RecordAccrual counts one accrued contribution event.
func (m *RewardsMetrics) RecordAccrual(contribution string) {
	if m == nil {
		return
	}
	m.accruals.WithLabelValues(contribution).Inc()
}

// FlowStarted counts one started flow.
func (m *RewardsMetrics) FlowStarted(flow string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(flow).Inc()
}

// FlowCompleted counts one settled flow.
func (m *RewardsMetrics) FlowCompleted(flow string) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(flow).Inc()
}

// FlowFailed counts one terminal flow failure at the named step.
func (m *RewardsMetrics) FlowFailed(flow, step string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(flow, step).Inc()
}

// SettlementSkipped counts one no-op settlement.
func (m *RewardsMetrics) SettlementSkipped(flow string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(flow).Inc()
}

// ProtocolViolation counts one aborted continuation.
func (m *RewardsMetrics) ProtocolViolation(kind string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(kind).Inc()
}

// GatewayMetrics wraps collectors tracking outbound external service calls.
type GatewayMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// Gateway exposes the lazily initialised metrics registry for the dispatcher.
func Gateway() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "donorpay",
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "External service calls, segmented by call kind and outcome.",
			}, []string{"call", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "donorpay",
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for external service calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"call"}),
		}
		prometheus.MustRegister(gatewayRegistry.calls, gatewayRegistry.latency)
	})
	return gatewayRegistry
}

// ObserveCall records one resolved external call.
func (m *GatewayMetrics) ObserveCall(call, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(call, outcome).Inc()
	m.latency.WithLabelValues(call).Observe(d.Seconds())
}
