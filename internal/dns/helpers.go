package dns

import (
	"strings"
)

// NormalizeHostname lowercases an FQDN and strips a trailing dot.
func NormalizeHostname(fqdn string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fqdn), "."))
}
