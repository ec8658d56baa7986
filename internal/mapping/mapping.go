// Package mapping holds the durable record of hostname to target mappings.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no active mapping matches a lookup.
var ErrNotFound = errors.New("mapping: not found")

// Mapping is a hostname routed through the reverse proxy to a target service.
// Removed mappings stay in the store with Active set to false.
type Mapping struct {
	ID            string     `json:"id" yaml:"id"`
	Hostname      string     `json:"hostname" yaml:"hostname"`
	TargetAddress string     `json:"targetIP" yaml:"targetIP"`
	TargetPort    int        `json:"targetPort" yaml:"targetPort"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"createdAt"`
	Active        bool       `json:"isActive" yaml:"isActive"`
	RemovedAt     *time.Time `json:"removedAt,omitempty" yaml:"removedAt,omitempty"`
}

// New returns an active mapping with a fresh time-ordered ID.
func New(hostname, targetAddress string, targetPort int) (Mapping, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Mapping{}, fmt.Errorf("generating mapping id: %w", err)
	}
	return Mapping{
		ID:            id.String(),
		Hostname:      NormalizeHostname(hostname),
		TargetAddress: targetAddress,
		TargetPort:    targetPort,
		CreatedAt:     time.Now().UTC(),
		Active:        true,
	}, nil
}

// NormalizeHostname lowercases hostname and strips surrounding space.
func NormalizeHostname(hostname string) string {
	return strings.ToLower(strings.TrimSpace(hostname))
}

// Store persists mappings. Implementations serialize mutations and only
// expose a change once it is durable.
type Store interface {
	// List returns the active mappings in insertion order.
	List(ctx context.Context) ([]Mapping, error)
	// GetByID returns the active mapping with the given ID.
	GetByID(ctx context.Context, id string) (Mapping, error)
	// GetByHostname returns the active mapping for hostname, ignoring case.
	GetByHostname(ctx context.Context, hostname string) (Mapping, error)
	// Add deactivates any active mapping for the same hostname and appends m,
	// persisting both edits together.
	Add(ctx context.Context, m Mapping) error
	// RemoveByHostname marks the active mapping for hostname inactive and
	// reports whether one existed.
	RemoveByHostname(ctx context.Context, hostname string) (bool, error)
	// History returns every record ever stored for hostname, oldest first.
	History(ctx context.Context, hostname string) ([]Mapping, error)
	Close() error
}

// Validate checks the fields every store requires.
func Validate(m Mapping) error {
	if m.ID == "" {
		return fmt.Errorf("mapping: missing id")
	}
	if NormalizeHostname(m.Hostname) == "" {
		return fmt.Errorf("mapping: missing hostname")
	}
	return nil
}
