package dns

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ZoneCandidates returns the suffixes of hostname that may already exist as a
// zone, most specific first. The top label alone is only a candidate when the
// hostname has exactly two labels.
//
//	"api.shop.local" → ["api.shop.local", "shop.local"]
//	"foo.local"      → ["foo.local", "local"]
func ZoneCandidates(hostname string) []string {
	hostname = NormalizeHostname(hostname)
	if hostname == "" {
		return nil
	}
	labels := strings.Split(hostname, ".")
	if len(labels) == 1 {
		return []string{hostname}
	}

	last := len(labels) - 1
	if len(labels) == 2 {
		last = len(labels)
	}
	candidates := make([]string, 0, last)
	for i := 0; i < last; i++ {
		candidates = append(candidates, strings.Join(labels[i:], "."))
	}
	return candidates
}

// DefaultZone returns the zone created for hostname when no existing zone
// matches: its last two labels, or the hostname itself if it has one label.
// e.g. "beta.newsvc.local" → "newsvc.local"
func DefaultZone(hostname string) string {
	hostname = NormalizeHostname(hostname)
	labels := strings.Split(hostname, ".")
	if len(labels) <= 2 {
		return hostname
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// ResolveZone picks the zone that should hold an A record for hostname given
// the zones known to the DNS authority. The narrowest existing zone wins;
// otherwise DefaultZone is returned with create set to true.
func ResolveZone(hostname string, existing []string) (zone string, create bool) {
	known := sets.New[string]()
	for _, z := range existing {
		known.Insert(NormalizeHostname(z))
	}
	for _, candidate := range ZoneCandidates(hostname) {
		if known.Has(candidate) {
			return candidate, false
		}
	}
	zone = DefaultZone(hostname)
	return zone, !known.Has(zone)
}
