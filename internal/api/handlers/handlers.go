// Package handlers implements the REST API endpoint handlers.
//
// Endpoints:
//   - GET    /api/v1/health                 - liveness of the API itself
//   - GET    /api/v1/status                 - reachability of DNS and proxy
//   - GET    /api/v1/mappings               - active mappings
//   - POST   /api/v1/mappings               - add a mapping
//   - GET    /api/v1/mappings/:ref          - one mapping by ID or hostname
//   - GET    /api/v1/mappings/:ref/history  - every record for a hostname
//   - DELETE /api/v1/mappings/:ref          - remove by ID or hostname
//
// All endpoints except /health accept optional API key authentication via the
// X-API-Key header.
package handlers

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/provisioner"
)

// Provisioner is the subset of provisioner.Provisioner the handlers use.
type Provisioner interface {
	AddMapping(ctx context.Context, hostname, targetAddress string, targetPort int) provisioner.Result
	RemoveMapping(ctx context.Context, ref string) provisioner.Result
	ListMappings(ctx context.Context) ([]mapping.Mapping, error)
	GetMapping(ctx context.Context, ref string) (mapping.Mapping, error)
	History(ctx context.Context, hostname string) ([]mapping.Mapping, error)
	Health(ctx context.Context) provisioner.HealthStatus
}

var _ Provisioner = (*provisioner.Provisioner)(nil)

// Handler contains dependencies for API handlers.
type Handler struct {
	svc Provisioner
	log logr.Logger
}

// New creates a new Handler.
func New(svc Provisioner, log logr.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}
