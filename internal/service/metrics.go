package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
)

// VerificationMetrics counts verification attempts by outcome.
type VerificationMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewVerificationMetrics creates and registers the outcome counter.
func NewVerificationMetrics(reg prometheus.Registerer) (*VerificationMetrics, error) {
	m := &VerificationMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_verifications_total",
				Help: "Total number of verification attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if err := reg.Register(m.outcomes); err != nil {
		return nil, err
	}
	return m, nil
}

// Record increments the counter for the given outcome. Safe on a nil receiver.
func (m *VerificationMetrics) Record(outcome model.VerificationOutcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(outcome)).Inc()
}
