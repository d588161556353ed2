package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAgendaMetricsObserve(t *testing.T) {
	m := NewAgendaMetrics(prometheus.NewRegistry())
	m.ObserveOperation("call_next", "ok")
	m.ObserveCompaction()
	m.ObserveQueueWait(120)
}

func TestElectroMetricsObserve(t *testing.T) {
	m := NewElectroMetrics(prometheus.NewRegistry())
	m.ObserveOperation("create", "ok")
}

func TestMetricsNilSafe(t *testing.T) {
	var am *AgendaMetrics
	am.ObserveOperation("create", "error")
	am.ObserveCompaction()
	am.ObserveQueueWait(1)

	var em *ElectroMetrics
	em.ObserveOperation("delete", "ok")
}
