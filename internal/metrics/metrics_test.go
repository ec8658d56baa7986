package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveOperation(t *testing.T) {
	c := Operations.WithLabelValues("add", OutcomeSuccess)
	before := counterValue(t, c)
	ObserveOperation("add", OutcomeSuccess)
	if got := counterValue(t, c); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestObserveCompensation(t *testing.T) {
	failed := Compensations.WithLabelValues("dns", OutcomeFailure)
	ok := Compensations.WithLabelValues("dns", OutcomeSuccess)
	beforeFailed, beforeOK := counterValue(t, failed), counterValue(t, ok)

	ObserveCompensation("dns", false)
	ObserveCompensation("dns", true)
	ObserveCompensation("dns", true)

	if got := counterValue(t, failed); got != beforeFailed+1 {
		t.Errorf("failure: expected %v, got %v", beforeFailed+1, got)
	}
	if got := counterValue(t, ok); got != beforeOK+2 {
		t.Errorf("success: expected %v, got %v", beforeOK+2, got)
	}
}
