// Package metrics defines the provisioning counters. They are registered in
// the controller-runtime registry, which the metrics server exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeWarning = "warning"
)

var (
	// Operations counts orchestrator operations by name and outcome.
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speeddial_operations_total",
		Help: "Provisioning operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// Compensations counts rollback steps attempted after a partial failure.
	Compensations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speeddial_compensations_total",
		Help: "Compensating actions by step and outcome.",
	}, []string{"step", "outcome"})
)

func init() {
	ctrlmetrics.Registry.MustRegister(Operations, Compensations)
}

// ObserveOperation records one finished operation.
func ObserveOperation(operation, outcome string) {
	Operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveCompensation records one rollback step.
func ObserveCompensation(step string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	Compensations.WithLabelValues(step, outcome).Inc()
}
