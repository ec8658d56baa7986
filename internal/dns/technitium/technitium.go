package technitium

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/dns"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/session"
)

const (
	statusOK           = "ok"
	statusInvalidToken = "invalid-token"
)

func init() {
	dns.Register("technitium", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for the Technitium DNS Server HTTP API.
type Provider struct {
	baseURL    string
	defaultTTL int
	client     *http.Client
	session    *session.Session
	log        logr.Logger
}

// New creates a Technitium DNS provider from the given settings map.
// Required settings: base_url, and either api_token or username + password.
// Optional settings: default_ttl (default 3600), timeout (default 5s),
// skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("technitium: missing required setting 'base_url'")
	}
	token := settings["api_token"]
	username, password := settings["username"], settings["password"]
	if token == "" && (username == "" || password == "") {
		return nil, fmt.Errorf("technitium: either 'api_token' or 'username' and 'password' must be set")
	}

	defaultTTL := 3600
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("technitium: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	timeout := 5 * time.Second
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("technitium: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTTL: defaultTTL,
		client:     &http.Client{Transport: transport, Timeout: timeout},
		log:        log,
	}
	if token != "" {
		p.session = session.NewStatic(token)
	} else {
		p.session = session.NewLogin(func(ctx context.Context) (string, error) {
			return p.login(ctx, username, password)
		})
	}
	return p, nil
}

// envelope is the JSON shape shared by every Technitium API response.
type envelope struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage"`
	Token        string          `json:"token"`
	Response     json.RawMessage `json:"response"`
}

// get executes a GET against the API without authentication and decodes the envelope.
func (p *Provider) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	u := p.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("technitium: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("technitium: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("technitium: %s returned status %d: %w", path, resp.StatusCode, dns.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("technitium: %s returned status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("technitium: decode %s response: %w", path, err)
	}
	switch env.Status {
	case statusOK:
		return &env, nil
	case statusInvalidToken:
		return nil, fmt.Errorf("technitium: %s: %s: %w", path, env.ErrorMessage, dns.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("technitium: %s returned status %q: %s", path, env.Status, env.ErrorMessage)
	}
}

// call executes an authenticated API call and decodes the response payload into out.
func (p *Provider) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	return p.session.Do(ctx, dns.ErrUnauthorized, func(token string) error {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("token", token)

		env, err := p.get(ctx, path, q)
		if err != nil {
			if errors.Is(err, dns.ErrUnauthorized) {
				p.log.V(1).Info("session token rejected", "path", path)
			}
			return err
		}
		if out != nil && len(env.Response) > 0 {
			if err := json.Unmarshal(env.Response, out); err != nil {
				return fmt.Errorf("technitium: decode %s payload: %w", path, err)
			}
		}
		return nil
	})
}

// login exchanges the configured credentials for a session token.
func (p *Provider) login(ctx context.Context, username, password string) (string, error) {
	p.log.Info("logging in", "user", username)
	env, err := p.get(ctx, "api/user/login", url.Values{
		"user":        {username},
		"pass":        {password},
		"includeInfo": {"false"},
	})
	if err != nil {
		return "", fmt.Errorf("technitium: login: %w", err)
	}
	if env.Token == "" {
		return "", fmt.Errorf("technitium: login returned no token")
	}
	return env.Token, nil
}

type zoneList struct {
	Zones []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"zones"`
}

// ListZones returns the names of all zones known to the server.
func (p *Provider) ListZones(ctx context.Context) ([]string, error) {
	var zl zoneList
	if err := p.call(ctx, "api/zones/list", nil, &zl); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zl.Zones))
	for _, z := range zl.Zones {
		names = append(names, z.Name)
	}
	return names, nil
}

// CreateZone creates a primary zone.
func (p *Provider) CreateZone(ctx context.Context, zone string) error {
	p.log.Info("creating zone", "zone", zone)
	if err := p.call(ctx, "api/zones/create", url.Values{
		"zone": {zone},
		"type": {"Primary"},
	}, nil); err != nil {
		return err
	}
	p.log.Info("zone created", "zone", zone)
	return nil
}

// AddARecord places an A record for hostname in the narrowest existing zone,
// creating a zone from the hostname's last two labels when none matches.
func (p *Provider) AddARecord(ctx context.Context, hostname, ip string) error {
	hostname = dns.NormalizeHostname(hostname)

	zones, err := p.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("technitium: list zones: %w", err)
	}
	zone, create := dns.ResolveZone(hostname, zones)
	p.log.V(1).Info("resolved zone", "hostname", hostname, "zone", zone, "create", create)
	if create {
		if err := p.CreateZone(ctx, zone); err != nil {
			return fmt.Errorf("technitium: ensure zone %s: %w", zone, err)
		}
	}

	p.log.Info("creating record", "hostname", hostname, "zone", zone, "value", ip)
	if err := p.call(ctx, "api/zones/records/add", url.Values{
		"domain":    {hostname},
		"zone":      {zone},
		"type":      {"A"},
		"ipAddress": {ip},
		"ttl":       {strconv.Itoa(p.defaultTTL)},
		"overwrite": {"true"},
	}, nil); err != nil {
		if create {
			p.removeZone(context.WithoutCancel(ctx), zone)
		}
		return err
	}
	p.log.Info("record created", "hostname", hostname)
	return nil
}

// removeZone deletes a zone AddARecord created for a record it then failed to
// add. Failures are logged only.
func (p *Provider) removeZone(ctx context.Context, zone string) {
	p.log.Info("removing zone after failed record add", "zone", zone)
	if err := p.call(ctx, "api/zones/delete", url.Values{"zone": {zone}}, nil); err != nil {
		p.log.Error(err, "removing zone", "zone", zone)
	}
}

type recordList struct {
	Records []struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		RData struct {
			IPAddress string `json:"ipAddress"`
		} `json:"rData"`
	} `json:"records"`
}

// DeleteARecord removes every A record of hostname. A hostname without a
// matching zone or record is treated as already deleted.
func (p *Provider) DeleteARecord(ctx context.Context, hostname string) error {
	hostname = dns.NormalizeHostname(hostname)
	p.log.Info("deleting record", "hostname", hostname)

	zones, err := p.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("technitium: list zones: %w", err)
	}
	zone, create := dns.ResolveZone(hostname, zones)
	if create {
		p.log.V(1).Info("no zone holds hostname, nothing to delete", "hostname", hostname)
		return nil
	}

	var rl recordList
	if err := p.call(ctx, "api/zones/records/get", url.Values{
		"domain": {hostname},
		"zone":   {zone},
	}, &rl); err != nil {
		return err
	}

	deleted := 0
	for _, rec := range rl.Records {
		if !strings.EqualFold(rec.Type, "A") || !strings.EqualFold(rec.Name, hostname) {
			continue
		}
		if err := p.call(ctx, "api/zones/records/delete", url.Values{
			"domain":    {hostname},
			"zone":      {zone},
			"type":      {"A"},
			"ipAddress": {rec.RData.IPAddress},
		}, nil); err != nil {
			return err
		}
		deleted++
	}
	p.log.Info("record deleted", "hostname", hostname, "count", deleted)
	return nil
}

// Healthy reports whether the server answers its version endpoint.
func (p *Provider) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.V(1).Info("health probe failed", "error", err.Error())
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
