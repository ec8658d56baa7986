// Package models defines request and response types for the REST API.
package models

import (
	"time"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse reports reachability of the remote systems.
type HealthResponse struct {
	DNS   bool `json:"dns"`
	Proxy bool `json:"proxy"`
}

// CreateMappingRequest is the request body for POST /mappings.
type CreateMappingRequest struct {
	Hostname      string `json:"hostname" binding:"required"`
	TargetAddress string `json:"target_address" binding:"required"`
	TargetPort    int    `json:"target_port"`
}

// MappingResponse is a single mapping.
type MappingResponse struct {
	ID            string     `json:"id"`
	Hostname      string     `json:"hostname"`
	TargetAddress string     `json:"target_address"`
	TargetPort    int        `json:"target_port"`
	CreatedAt     time.Time  `json:"created_at"`
	Active        bool       `json:"active"`
	RemovedAt     *time.Time `json:"removed_at,omitempty"`
}

// MappingsResponse is the response for list endpoints.
type MappingsResponse struct {
	Mappings []MappingResponse `json:"mappings"`
	Count    int               `json:"count"`
}

// OperationResponse is the outcome of an add or remove.
type OperationResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Warnings []string         `json:"warnings,omitempty"`
	Mapping  *MappingResponse `json:"mapping,omitempty"`
}

// FromMapping converts a stored mapping into its API representation.
func FromMapping(m mapping.Mapping) MappingResponse {
	return MappingResponse{
		ID:            m.ID,
		Hostname:      m.Hostname,
		TargetAddress: m.TargetAddress,
		TargetPort:    m.TargetPort,
		CreatedAt:     m.CreatedAt,
		Active:        m.Active,
		RemovedAt:     m.RemovedAt,
	}
}

// FromMappings converts a list of mappings.
func FromMappings(ms []mapping.Mapping) MappingsResponse {
	out := MappingsResponse{Mappings: make([]MappingResponse, 0, len(ms)), Count: len(ms)}
	for _, m := range ms {
		out.Mappings = append(out.Mappings, FromMapping(m))
	}
	return out
}
