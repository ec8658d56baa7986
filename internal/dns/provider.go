package dns

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the DNS authority rejects the session token.
var ErrUnauthorized = errors.New("dns: unauthorized")

// Provider is the interface that DNS authority backends must implement.
type Provider interface {
	// AddARecord resolves the zone for hostname, creates it if needed and adds
	// an A record pointing at ip.
	AddARecord(ctx context.Context, hostname, ip string) error
	// DeleteARecord removes the A record for hostname. A missing record is not an error.
	DeleteARecord(ctx context.Context, hostname string) error
	ListZones(ctx context.Context) ([]string, error)
	CreateZone(ctx context.Context, zone string) error
	Healthy(ctx context.Context) bool
}
