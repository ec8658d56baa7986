package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// DomainMap maps domains to the IP their DNS records should point at.
type DomainMap struct {
	entries map[string]string
}

// NewDomainMap builds a DomainMap from domain → IP entries.
func NewDomainMap(entries map[string]string) *DomainMap {
	dm := &DomainMap{entries: make(map[string]string, len(entries))}
	for d, ip := range entries {
		dm.entries[strings.ToLower(d)] = os.ExpandEnv(ip)
	}
	return dm
}

// LoadDomainMap reads a YAML file mapping domains to IPs.
func LoadDomainMap(path string) (*DomainMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain map file: %w", err)
	}

	entries := make(map[string]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing domain map file: %w", err)
	}

	return NewDomainMap(entries), nil
}

// UnmarshalYAML lets a DomainMap be embedded in the main config file.
func (dm *DomainMap) UnmarshalYAML(node *yaml.Node) error {
	entries := make(map[string]string)
	if err := node.Decode(&entries); err != nil {
		return err
	}
	*dm = *NewDomainMap(entries)
	return nil
}

// merge returns a DomainMap holding dm's entries overlaid by other's.
func (dm *DomainMap) merge(other *DomainMap) *DomainMap {
	merged := &DomainMap{entries: make(map[string]string)}
	for _, m := range []*DomainMap{dm, other} {
		if m == nil {
			continue
		}
		for d, ip := range m.entries {
			merged.entries[d] = ip
		}
	}
	return merged
}

// LookupIP finds the IP for a hostname by matching against domain entries.
// It walks up the domain labels checking for exact matches and wildcard entries.
// Exact matches take priority over wildcards. For example, given:
//
//	"*.home.lan":    "10.0.0.1"
//	"nas.home.lan":  "10.0.0.2"
//
// "wiki.home.lan" returns "10.0.0.1" (wildcard match)
// "nas.home.lan" returns "10.0.0.2" (exact match wins)
func (dm *DomainMap) LookupIP(hostname string) (string, bool) {
	if dm == nil {
		return "", false
	}
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	for h := hostname; h != ""; {
		if ip, ok := dm.entries[h]; ok {
			return ip, true
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		if ip, ok := dm.entries["*."+h[idx+1:]]; ok {
			return ip, true
		}
		h = h[idx+1:]
	}
	return "", false
}

// Resolver returns a function that looks hostname up and falls back to
// fallback when no entry matches.
func (dm *DomainMap) Resolver(fallback string) func(hostname string) string {
	return func(hostname string) string {
		if ip, ok := dm.LookupIP(hostname); ok {
			return ip
		}
		return fallback
	}
}

// Domains returns all configured domains, sorted.
func (dm *DomainMap) Domains() []string {
	if dm == nil {
		return nil
	}
	domains := make([]string, 0, len(dm.entries))
	for d := range dm.entries {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
