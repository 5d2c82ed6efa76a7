package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts compliance activity. A nil *Metrics records nothing.
type Metrics struct {
	// checksRun counts audited objects by check and outcome
	checksRun *prometheus.CounterVec

	// resultsWritten counts upserted results by validity
	resultsWritten *prometheus.CounterVec

	// sourceFailures counts sources that failed to load
	sourceFailures *prometheus.CounterVec

	// orphansRemoved counts results deleted by orphan cleanup
	orphansRemoved prometheus.Counter
}

// NewMetrics creates the compliance metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		checksRun: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_checks_run_total",
			Help: "Objects audited by check and outcome",
		}, []string{"check", "outcome"}),
		resultsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_results_written_total",
			Help: "Compliance results upserted by validity",
		}, []string{"valid"}),
		sourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_source_failures_total",
			Help: "External sources that failed to load",
		}, []string{"source"}),
		orphansRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_orphans_removed_total",
			Help: "Results deleted because their object no longer exists",
		}),
	}
}

func (m *Metrics) checkRun(check, outcome string) {
	if m == nil {
		return
	}
	m.checksRun.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) resultWritten(valid bool) {
	if m == nil {
		return
	}
	if valid {
		m.resultsWritten.WithLabelValues("true").Inc()
		return
	}
	m.resultsWritten.WithLabelValues("false").Inc()
}

func (m *Metrics) sourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) orphansDeleted(n int) {
	if m == nil {
		return
	}
	m.orphansRemoved.Add(float64(n))
}
