package core

import (
	"mint-ledger/core/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts processed operations by kind and result. A nil *Metrics
// records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "Operations handled by the ledger, by operation and result.",
		}, []string{"operation", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations)
	}
	return m
}

func (m *Metrics) observe(op model.OperationKind, code model.ResultCode) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op), code.String()).Inc()
}

// Operations returns the counter behind the metrics, for scraping or tests.
func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}
