package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FlowsPublished       prometheus.Counter
	FlowCompileRejected  prometheus.Counter
	StepsResolved        *prometheus.CounterVec
	ResolveDuration      prometheus.Histogram
	SessionBoundaryFails *prometheus.CounterVec
	DangerousKeys        prometheus.Counter
	PlanCacheHits        prometheus.Counter
	PlanCacheMisses      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		FlowsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flow_engine_flows_published_total",
			Help: "Total number of flow definitions compiled and published",
		}),
		FlowCompileRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flow_engine_compile_rejected_total",
			Help: "Total number of flow definitions rejected at compile time",
		}),
		StepsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_engine_steps_resolved_total",
			Help: "Total number of step resolutions by outcome",
		}, []string{"outcome"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flow_engine_resolve_duration_seconds",
			Help:    "Time spent resolving the next node for a step",
			Buckets: prometheus.DefBuckets,
		}),
		SessionBoundaryFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_engine_session_boundary_failures_total",
			Help: "Step submissions rejected at the session boundary, by reason",
		}, []string{"reason"}),
		DangerousKeys: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flow_engine_dangerous_keys_rejected_total",
			Help: "Dangerous key segments rejected during context traversal",
		}),
		PlanCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flow_engine_plan_cache_hits_total",
			Help: "Compiled plan cache hits",
		}),
		PlanCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flow_engine_plan_cache_misses_total",
			Help: "Compiled plan cache misses",
		}),
	}
}

// Step resolution outcomes.
const (
	OutcomeAdvanced  = "advanced"
	OutcomeCompleted = "completed"
	OutcomeStalled   = "stalled"
)

func (m *Metrics) IncrementFlowsPublished() {
	m.FlowsPublished.Inc()
}

func (m *Metrics) IncrementCompileRejected() {
	m.FlowCompileRejected.Inc()
}

func (m *Metrics) ObserveStepResolved(outcome string, seconds float64) {
	m.StepsResolved.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(seconds)
}

func (m *Metrics) IncrementSessionBoundaryFailure(reason string) {
	m.SessionBoundaryFails.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementDangerousKeys() {
	m.DangerousKeys.Inc()
}

func (m *Metrics) IncrementPlanCacheHit()  { m.PlanCacheHits.Inc() }
func (m *Metrics) IncrementPlanCacheMiss() { m.PlanCacheMisses.Inc() }
