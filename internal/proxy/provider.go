package proxy

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthorized is returned when the proxy manager rejects the bearer token.
var ErrUnauthorized = errors.New("proxy: unauthorized")

// Host is a forwarding rule owned by the reverse-proxy manager.
type Host struct {
	ID          int
	DomainNames []string
	ForwardHost string
	ForwardPort int
	Enabled     bool
}

// Provider is the interface that reverse-proxy manager backends must implement.
type Provider interface {
	// CreateProxyHost creates a plain HTTP forwarding rule and returns its remote id.
	CreateProxyHost(ctx context.Context, hostname, targetAddress string, targetPort int) (int, error)
	DeleteProxyHost(ctx context.Context, id int) error
	ListProxyHosts(ctx context.Context) ([]Host, error)
	Healthy(ctx context.Context) bool
}

// FindByDomain returns the first host whose domain list contains hostname,
// compared case-insensitively.
func FindByDomain(hosts []Host, hostname string) (Host, bool) {
	for _, h := range hosts {
		for _, d := range h.DomainNames {
			if strings.EqualFold(d, hostname) {
				return h, true
			}
		}
	}
	return Host{}, false
}
