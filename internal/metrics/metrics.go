// Package metrics exposes Prometheus collectors for dispatched calls and
// storage upgrades.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the registered collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	calls            *prometheus.CounterVec
	entitiesCreated  prometheus.Counter
	migrationRecords *prometheus.CounterVec
	migrationWeight  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menagerie",
			Name:      "calls_total",
			Help:      "Dispatched calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		entitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "menagerie",
			Name:      "entities_created_total",
			Help:      "Entities allocated by create and breed.",
		}),
		migrationRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menagerie",
			Name:      "migration_records_total",
			Help:      "Records rewritten by storage upgrades, by step.",
		}, []string{"step"}),
		migrationWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "menagerie",
			Name:      "migration_weight",
			Help:      "Reads and writes reported by the last storage upgrade.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.calls, m.entitiesCreated, m.migrationRecords, m.migrationWeight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveCall counts one dispatched call.
func (m *Metrics) ObserveCall(op, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, outcome).Inc()
}

// ObserveCreated counts newly allocated entities.
func (m *Metrics) ObserveCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesCreated.Add(float64(n))
}

// ObserveMigration records the records rewritten by one step.
func (m *Metrics) ObserveMigration(step string, records int) {
	if m == nil || records <= 0 {
		return
	}
	m.migrationRecords.WithLabelValues(step).Add(float64(records))
}

// SetUpgradeWeight records the cost of the last upgrade.
func (m *Metrics) SetUpgradeWeight(reads, writes uint64) {
	if m == nil {
		return
	}
	m.migrationWeight.WithLabelValues("reads").Set(float64(reads))
	m.migrationWeight.WithLabelValues("writes").Set(float64(writes))
}
