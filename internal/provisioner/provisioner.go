// Package provisioner sequences the DNS, reverse proxy and local store writes
// behind adding and removing a hostname mapping.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/dns"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/proxy"
)

// DefaultRequestTimeout bounds every remote call when RequestTimeout is unset.
const DefaultRequestTimeout = 5 * time.Second

const (
	opAdd    = "add"
	opRemove = "remove"
)

// ProxyIPFunc returns the address DNS records for hostname should point at.
type ProxyIPFunc func(hostname string) string

// Provisioner adds and removes hostname mappings across the DNS server, the
// reverse proxy and the mapping store. It is safe for concurrent use.
type Provisioner struct {
	Log            logr.Logger
	DNS            dns.Provider
	Proxy          proxy.Provider
	Store          mapping.Store
	ProxyIP        ProxyIPFunc
	RequestTimeout time.Duration

	mu       sync.Mutex
	inFlight sets.Set[string]
}

// reserve marks hostname as being provisioned. It reports false if another
// operation already holds it.
func (p *Provisioner) reserve(hostname string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight == nil {
		p.inFlight = sets.New[string]()
	}
	if p.inFlight.Has(hostname) {
		return false
	}
	p.inFlight.Insert(hostname)
	return true
}

func (p *Provisioner) release(hostname string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight.Delete(hostname)
}

func (p *Provisioner) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := p.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// recoverInto converts a panic raised by a collaborator into a failed Result.
// It must be deferred before observe so the failure is counted once.
func (p *Provisioner) recoverInto(op string, res *Result) {
	if r := recover(); r != nil {
		p.Log.Error(fmt.Errorf("panic: %v", r), "operation panicked", "operation", op)
		*res = fail(ReasonInternal, fmt.Sprintf("internal error during %s: %v", op, r))
	}
}

func observe(op string, res Result) {
	switch {
	case !res.Success:
		metrics.ObserveOperation(op, metrics.OutcomeFailure)
	case len(res.Warnings) > 0:
		metrics.ObserveOperation(op, metrics.OutcomeWarning)
	default:
		metrics.ObserveOperation(op, metrics.OutcomeSuccess)
	}
}

// normalizeHostname lowercases and trims hostname, dropping a trailing dot.
func normalizeHostname(hostname string) string {
	return strings.TrimSuffix(mapping.NormalizeHostname(hostname), ".")
}

func validateHostname(hostname string) error {
	if hostname == "" {
		return errors.New("hostname is required")
	}
	if errs := validation.IsDNS1123Subdomain(hostname); len(errs) > 0 {
		return fmt.Errorf("invalid hostname %q: %s", hostname, strings.Join(errs, "; "))
	}
	return nil
}

func validateTarget(address string, port int) error {
	if address == "" {
		return errors.New("target address is required")
	}
	if _, err := netip.ParseAddr(address); err != nil {
		if errs := validation.IsDNS1123Subdomain(strings.ToLower(address)); len(errs) > 0 {
			return fmt.Errorf("invalid target address %q: must be an IP address or hostname", address)
		}
	}
	if errs := validation.IsValidPortNum(port); len(errs) > 0 {
		return fmt.Errorf("invalid target port %d: %s", port, strings.Join(errs, "; "))
	}
	return nil
}

// AddMapping validates the request, then creates the DNS A record, the proxy
// host and the local record in that order. A failed step undoes the steps
// before it on a best-effort basis.
func (p *Provisioner) AddMapping(ctx context.Context, hostname, targetAddress string, targetPort int) (res Result) {
	defer p.recoverInto(opAdd, &res)
	defer func() { observe(opAdd, res) }()

	hostname = normalizeHostname(hostname)
	targetAddress = strings.TrimSpace(targetAddress)
	log := p.Log.WithValues("hostname", hostname)

	if err := validateHostname(hostname); err != nil {
		return fail(ReasonInvalid, err.Error())
	}
	if err := validateTarget(targetAddress, targetPort); err != nil {
		return fail(ReasonInvalid, err.Error())
	}

	if !p.reserve(hostname) {
		log.V(1).Info("hostname is already being provisioned")
		return fail(ReasonDuplicate, fmt.Sprintf("hostname %s is already being provisioned", hostname))
	}
	defer p.release(hostname)

	if _, err := p.Store.GetByHostname(ctx, hostname); err == nil {
		return fail(ReasonDuplicate, fmt.Sprintf("hostname %s is already mapped", hostname))
	} else if !errors.Is(err, mapping.ErrNotFound) {
		log.Error(err, "looking up existing mapping")
		return fail(ReasonInternal, fmt.Sprintf("checking existing mapping: %v", err))
	}

	proxyIP := p.ProxyIP(hostname)
	if proxyIP == "" {
		return fail(ReasonInternal, fmt.Sprintf("no proxy IP configured for %s", hostname))
	}

	log.Info("creating DNS record", "ip", proxyIP)
	if err := p.addDNS(ctx, hostname, proxyIP); err != nil {
		log.Error(err, "creating DNS record")
		return fail(ReasonRemote, fmt.Sprintf("failed to create DNS record: %v", err))
	}

	log.Info("creating proxy host", "target", targetAddress, "port", targetPort)
	proxyID, err := p.createProxyHost(ctx, hostname, targetAddress, targetPort)
	if err != nil {
		log.Error(err, "creating proxy host")
		res = fail(ReasonRemote, fmt.Sprintf("failed to create proxy host: %v", err))
		res.Warnings = p.compensate(ctx, log, hostname, 0)
		return res
	}

	m, err := mapping.New(hostname, targetAddress, targetPort)
	if err == nil {
		err = p.Store.Add(ctx, m)
	}
	if err != nil {
		log.Error(err, "saving mapping")
		res = fail(ReasonInternal, fmt.Sprintf("failed to save mapping: %v", err))
		res.Warnings = p.compensate(ctx, log, hostname, proxyID)
		return res
	}

	log.Info("mapping added", "id", m.ID)
	return ok(fmt.Sprintf("mapping %s -> %s:%d added", hostname, targetAddress, targetPort), &m, nil)
}

func (p *Provisioner) addDNS(ctx context.Context, hostname, ip string) error {
	ctx, cancel := p.remote(ctx)
	defer cancel()
	return p.DNS.AddARecord(ctx, hostname, ip)
}

func (p *Provisioner) deleteDNS(ctx context.Context, hostname string) error {
	ctx, cancel := p.remote(ctx)
	defer cancel()
	return p.DNS.DeleteARecord(ctx, hostname)
}

func (p *Provisioner) createProxyHost(ctx context.Context, hostname, address string, port int) (int, error) {
	ctx, cancel := p.remote(ctx)
	defer cancel()
	return p.Proxy.CreateProxyHost(ctx, hostname, address, port)
}

func (p *Provisioner) deleteProxyHost(ctx context.Context, id int) error {
	ctx, cancel := p.remote(ctx)
	defer cancel()
	return p.Proxy.DeleteProxyHost(ctx, id)
}

func (p *Provisioner) listProxyHosts(ctx context.Context) ([]proxy.Host, error) {
	ctx, cancel := p.remote(ctx)
	defer cancel()
	return p.Proxy.ListProxyHosts(ctx)
}

// compensate rolls back what AddMapping created: the proxy host when proxyID
// is non-zero, then the DNS record. Failures are logged and returned as
// warnings; they never change the outcome. Rollback ignores cancellation of
// ctx and is bounded by the per-call timeout only.
func (p *Provisioner) compensate(ctx context.Context, log logr.Logger, hostname string, proxyID int) []string {
	ctx = context.WithoutCancel(ctx)
	var warnings []string
	if proxyID != 0 {
		err := p.deleteProxyHost(ctx, proxyID)
		metrics.ObserveCompensation("proxy", err == nil)
		if err != nil {
			log.Error(err, "rollback: deleting proxy host", "proxyHostID", proxyID)
			warnings = append(warnings, fmt.Sprintf("rollback failed to delete proxy host %d: %v", proxyID, err))
		} else {
			log.Info("rollback: proxy host deleted", "proxyHostID", proxyID)
		}
	}

	err := p.deleteDNS(ctx, hostname)
	metrics.ObserveCompensation("dns", err == nil)
	if err != nil {
		log.Error(err, "rollback: deleting DNS record")
		warnings = append(warnings, fmt.Sprintf("rollback failed to delete DNS record: %v", err))
	} else {
		log.Info("rollback: DNS record deleted")
	}
	return warnings
}

// RemoveMapping resolves ref as a mapping ID first, then as a hostname, and
// removes the mapping.
func (p *Provisioner) RemoveMapping(ctx context.Context, ref string) (res Result) {
	defer p.recoverInto(opRemove, &res)
	defer func() { observe(opRemove, res) }()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fail(ReasonInvalid, "hostname or id is required")
	}
	m, err := p.Store.GetByID(ctx, ref)
	if errors.Is(err, mapping.ErrNotFound) {
		m, err = p.Store.GetByHostname(ctx, normalizeHostname(ref))
	}
	return p.removeResolved(ctx, ref, m, err)
}

// RemoveMappingByID removes the active mapping with the given ID.
func (p *Provisioner) RemoveMappingByID(ctx context.Context, id string) (res Result) {
	defer p.recoverInto(opRemove, &res)
	defer func() { observe(opRemove, res) }()

	m, err := p.Store.GetByID(ctx, strings.TrimSpace(id))
	return p.removeResolved(ctx, id, m, err)
}

// RemoveMappingByHostname removes the active mapping for hostname.
func (p *Provisioner) RemoveMappingByHostname(ctx context.Context, hostname string) (res Result) {
	defer p.recoverInto(opRemove, &res)
	defer func() { observe(opRemove, res) }()

	m, err := p.Store.GetByHostname(ctx, normalizeHostname(hostname))
	return p.removeResolved(ctx, hostname, m, err)
}

func (p *Provisioner) removeResolved(ctx context.Context, ref string, m mapping.Mapping, lookupErr error) Result {
	if errors.Is(lookupErr, mapping.ErrNotFound) {
		return fail(ReasonNotFound, fmt.Sprintf("no active mapping found for %s", ref))
	}
	if lookupErr != nil {
		p.Log.Error(lookupErr, "looking up mapping", "ref", ref)
		return fail(ReasonInternal, fmt.Sprintf("looking up mapping: %v", lookupErr))
	}

	if !p.reserve(m.Hostname) {
		return fail(ReasonDuplicate, fmt.Sprintf("hostname %s is already being provisioned", m.Hostname))
	}
	defer p.release(m.Hostname)

	return p.remove(ctx, m)
}

// remove deletes the DNS record and the proxy host, then always marks the
// local record inactive. Remote failures become warnings.
func (p *Provisioner) remove(ctx context.Context, m mapping.Mapping) Result {
	log := p.Log.WithValues("hostname", m.Hostname, "id", m.ID)
	var warnings []string

	log.Info("deleting DNS record")
	if err := p.deleteDNS(ctx, m.Hostname); err != nil {
		log.Error(err, "deleting DNS record")
		warnings = append(warnings, fmt.Sprintf("failed to delete DNS record: %v", err))
	}

	hosts, err := p.listProxyHosts(ctx)
	if err != nil {
		log.Error(err, "listing proxy hosts")
		warnings = append(warnings, fmt.Sprintf("failed to list proxy hosts: %v", err))
	} else if host, found := proxy.FindByDomain(hosts, m.Hostname); found {
		log.Info("deleting proxy host", "proxyHostID", host.ID)
		if err := p.deleteProxyHost(ctx, host.ID); err != nil {
			log.Error(err, "deleting proxy host", "proxyHostID", host.ID)
			warnings = append(warnings, fmt.Sprintf("failed to delete proxy host %d: %v", host.ID, err))
		}
	} else {
		log.V(1).Info("no proxy host found, nothing to delete")
	}

	removed, err := p.Store.RemoveByHostname(ctx, m.Hostname)
	if err != nil {
		log.Error(err, "marking mapping inactive")
		res := fail(ReasonInternal, fmt.Sprintf("failed to update local record: %v", err))
		res.Warnings = warnings
		return res
	}
	if !removed {
		log.V(1).Info("mapping was already inactive")
	}

	m.Active = false
	if len(warnings) > 0 {
		log.Info("mapping removed with warnings", "warnings", len(warnings))
		return ok(fmt.Sprintf("mapping %s removed with warnings", m.Hostname), &m, warnings)
	}
	log.Info("mapping removed")
	return ok(fmt.Sprintf("mapping %s removed", m.Hostname), &m, nil)
}

// ListMappings returns the active mappings.
func (p *Provisioner) ListMappings(ctx context.Context) ([]mapping.Mapping, error) {
	return p.Store.List(ctx)
}

// GetMapping resolves ref as an ID first, then as a hostname.
func (p *Provisioner) GetMapping(ctx context.Context, ref string) (mapping.Mapping, error) {
	m, err := p.Store.GetByID(ctx, ref)
	if errors.Is(err, mapping.ErrNotFound) {
		return p.Store.GetByHostname(ctx, normalizeHostname(ref))
	}
	return m, err
}

// History returns every record stored for hostname.
func (p *Provisioner) History(ctx context.Context, hostname string) ([]mapping.Mapping, error) {
	return p.Store.History(ctx, normalizeHostname(hostname))
}

// Health probes both remote systems concurrently.
func (p *Provisioner) Health(ctx context.Context) HealthStatus {
	ctx, cancel := p.remote(ctx)
	defer cancel()

	var (
		status HealthStatus
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		status.DNS = p.DNS.Healthy(ctx)
	}()
	go func() {
		defer wg.Done()
		status.Proxy = p.Proxy.Healthy(ctx)
	}()
	wg.Wait()
	return status
}
