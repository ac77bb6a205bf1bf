package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series in family name whose labels
// match want exactly.
func sample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m.GetLabel(), want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveCall("create", OutcomeOK)
	m.ObserveCall("create", OutcomeOK)
	m.ObserveCall("buy", OutcomeRejected)
	m.ObserveCreated(2)
	m.ObserveCreated(0)
	m.ObserveMigration("add_name", 3)
	m.SetUpgradeWeight(5, 4)

	assert.Equal(t, 2.0, sample(t, reg, "menagerie_calls_total", map[string]string{"op": "create", "outcome": "ok"}))
	assert.Equal(t, 1.0, sample(t, reg, "menagerie_calls_total", map[string]string{"op": "buy", "outcome": "rejected"}))
	assert.Equal(t, 2.0, sample(t, reg, "menagerie_entities_created_total", map[string]string{}))
	assert.Equal(t, 3.0, sample(t, reg, "menagerie_migration_records_total", map[string]string{"step": "add_name"}))
	assert.Equal(t, 5.0, sample(t, reg, "menagerie_migration_weight", map[string]string{"kind": "reads"}))
	assert.Equal(t, 4.0, sample(t, reg, "menagerie_migration_weight", map[string]string{"kind": "writes"}))
}

func TestNewTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("create", OutcomeOK)
		m.ObserveCreated(1)
		m.ObserveMigration("add_name", 1)
		m.SetUpgradeWeight(1, 1)
	})
}
