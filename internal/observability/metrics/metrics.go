package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgendaMetrics exposes counters/histograms for the turno queue engine.
type AgendaMetrics struct {
	opsTotal         *prometheus.CounterVec
	compactionsTotal prometheus.Counter
	queueWait        prometheus.Histogram
}

func NewAgendaMetrics(reg prometheus.Registerer) *AgendaMetrics {
	m := &AgendaMetrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "agenda",
			Name:      "operations_total",
			Help:      "Total queue engine operations",
		}, []string{"operation", "status"}),
		compactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "agenda",
			Name:      "compactions_total",
			Help:      "Total queue renumbering passes",
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinica",
			Subsystem: "agenda",
			Name:      "call_next_wait_seconds",
			Help:      "Time a patient waited in EN_SALA before being called",
			Buckets:   []float64{60, 300, 600, 1200, 1800, 3600, 7200},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.opsTotal, m.compactionsTotal, m.queueWait)
	return m
}

func (m *AgendaMetrics) ObserveOperation(operation, status string) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
}

func (m *AgendaMetrics) ObserveCompaction() {
	if m == nil {
		return
	}
	m.compactionsTotal.Inc()
}

func (m *AgendaMetrics) ObserveQueueWait(seconds float64) {
	if m == nil {
		return
	}
	m.queueWait.Observe(seconds)
}

// ElectroMetrics counts equipment scheduler operations.
type ElectroMetrics struct {
	opsTotal *prometheus.CounterVec
}

func NewElectroMetrics(reg prometheus.Registerer) *ElectroMetrics {
	m := &ElectroMetrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "electro",
			Name:      "operations_total",
			Help:      "Total equipment scheduler operations",
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.opsTotal)
	return m
}

func (m *ElectroMetrics) ObserveOperation(operation, status string) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
}
