package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) bool

// Checker adapts a HealthFunc to a healthz check.
func Checker(name string, fn HealthFunc) healthz.Checker {
	return func(req *http.Request) error {
		if !fn(req.Context()) {
			return fmt.Errorf("%s unreachable", name)
		}
		return nil
	}
}

// NewProbeServer serves /healthz (process liveness) and /readyz with one
// sub-check per entry in readiness.
func NewProbeServer(addr string, readiness map[string]healthz.Checker) *http.Server {
	mux := http.NewServeMux()

	live := &healthz.Handler{Checks: map[string]healthz.Checker{"ping": healthz.Ping}}
	mux.Handle("/healthz", http.StripPrefix("/healthz", live))
	mux.Handle("/healthz/", http.StripPrefix("/healthz", live))

	ready := &healthz.Handler{Checks: readiness}
	mux.Handle("/readyz", http.StripPrefix("/readyz", ready))
	mux.Handle("/readyz/", http.StripPrefix("/readyz", ready))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// NewMetricsServer exposes the controller-runtime registry on /metrics.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
