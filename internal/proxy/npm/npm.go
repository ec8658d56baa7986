package npm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/proxy"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/session"
)

func init() {
	proxy.Register("npm", func(log logr.Logger, settings map[string]string) (proxy.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements proxy.Provider for the Nginx Proxy Manager API.
type Provider struct {
	baseURL string
	client  *http.Client
	session *session.Session
	log     logr.Logger
}

// New creates a Nginx Proxy Manager provider from the given settings map.
// Required settings: base_url, and either token or email + password.
// Optional settings: timeout (default 5s), skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("npm: missing required setting 'base_url'")
	}
	token := settings["token"]
	email, password := settings["email"], settings["password"]
	if token == "" && (email == "" || password == "") {
		return nil, fmt.Errorf("npm: either 'token' or 'email' and 'password' must be set")
	}

	timeout := 5 * time.Second
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("npm: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport, Timeout: timeout},
		log:     log,
	}
	if token != "" {
		p.session = session.NewStatic(token)
	} else {
		p.session = session.NewLogin(func(ctx context.Context) (string, error) {
			return p.login(ctx, email, password)
		})
	}
	return p, nil
}

// doRequest builds and executes an HTTP request against the NPM API.
// An empty token sends the request unauthenticated.
func (p *Provider) doRequest(ctx context.Context, method, path, token string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("npm: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := p.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("npm: build request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("npm: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// call executes an authenticated request, checks the status and decodes the
// response into out when out is non-nil.
func (p *Provider) call(ctx context.Context, method, path string, body, out interface{}, ok ...int) error {
	return p.session.Do(ctx, proxy.ErrUnauthorized, func(token string) error {
		resp, err := p.doRequest(ctx, method, path, token, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			p.log.V(1).Info("bearer token rejected", "path", path)
			return fmt.Errorf("npm: %s %s returned status %d: %w", method, path, resp.StatusCode, proxy.ErrUnauthorized)
		}
		if !statusIn(resp.StatusCode, ok) {
			respBody, _ := io.ReadAll(resp.Body)
			return &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("npm: decode %s response: %w", path, err)
			}
		}
		return nil
	})
}

type statusError struct {
	method, path string
	code         int
	body         string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("npm: %s %s returned status %d: %s", e.method, e.path, e.code, e.body)
}

func statusIn(code int, ok []int) bool {
	for _, c := range ok {
		if c == code {
			return true
		}
	}
	return false
}

// login exchanges email and password for a bearer token.
func (p *Provider) login(ctx context.Context, email, password string) (string, error) {
	p.log.Info("logging in", "identity", email)
	resp, err := p.doRequest(ctx, http.MethodPost, "api/tokens", "", map[string]string{
		"identity": email,
		"secret":   password,
	})
	if err != nil {
		return "", fmt.Errorf("npm: login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("npm: login returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	var result struct {
		Token   string `json:"token"`
		Expires string `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("npm: decode login response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("npm: login returned no token")
	}
	p.log.V(1).Info("logged in", "expires", result.Expires)
	return result.Token, nil
}

// proxyHostBody is the create payload. TLS, certificates and every advanced
// feature stay off; the rule only forwards plain HTTP.
type proxyHostBody struct {
	DomainNames           []string `json:"domain_names"`
	ForwardScheme         string   `json:"forward_scheme"`
	ForwardHost           string   `json:"forward_host"`
	ForwardPort           int      `json:"forward_port"`
	AccessListID          string   `json:"access_list_id"`
	CertificateID         string   `json:"certificate_id"`
	SSLForced             bool     `json:"ssl_forced"`
	CachingEnabled        bool     `json:"caching_enabled"`
	BlockExploits         bool     `json:"block_exploits"`
	AdvancedConfig        string   `json:"advanced_config"`
	AllowWebsocketUpgrade bool     `json:"allow_websocket_upgrade"`
	HTTP2Support          bool     `json:"http2_support"`
	HSTSEnabled           bool     `json:"hsts_enabled"`
	HSTSSubdomains        bool     `json:"hsts_subdomains"`
	Meta                  struct {
		LetsencryptAgree bool `json:"letsencrypt_agree"`
		DNSChallenge     bool `json:"dns_challenge"`
	} `json:"meta"`
}

// proxyHostRow is a proxy host as returned by the list and create endpoints.
type proxyHostRow struct {
	ID          int      `json:"id"`
	DomainNames []string `json:"domain_names"`
	ForwardHost string   `json:"forward_host"`
	ForwardPort int      `json:"forward_port"`
	Enabled     flexBool `json:"enabled"`
}

// flexBool accepts both JSON booleans and the 0/1 integers older NPM releases emit.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("npm: invalid boolean %s", data)
	}
	return nil
}

// CreateProxyHost creates a forwarding rule for hostname to targetAddress:targetPort.
func (p *Provider) CreateProxyHost(ctx context.Context, hostname, targetAddress string, targetPort int) (int, error) {
	p.log.Info("creating proxy host", "hostname", hostname, "target", targetAddress, "port", targetPort)

	body := proxyHostBody{
		DomainNames:   []string{hostname},
		ForwardScheme: "http",
		ForwardHost:   targetAddress,
		ForwardPort:   targetPort,
		AccessListID:  "0",
		CertificateID: "0",
	}
	var created proxyHostRow
	if err := p.call(ctx, http.MethodPost, "api/nginx/proxy-hosts", body, &created, http.StatusOK, http.StatusCreated); err != nil {
		return 0, err
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("npm: create proxy host returned no id")
	}

	p.log.Info("proxy host created", "id", created.ID)
	return created.ID, nil
}

// DeleteProxyHost removes a proxy host. A host that no longer exists counts as deleted.
func (p *Provider) DeleteProxyHost(ctx context.Context, id int) error {
	p.log.Info("deleting proxy host", "id", id)

	err := p.call(ctx, http.MethodDelete, fmt.Sprintf("api/nginx/proxy-hosts/%d", id), nil, nil, http.StatusOK, http.StatusNoContent)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		p.log.V(1).Info("proxy host already gone", "id", id)
		return nil
	}
	if err != nil {
		return err
	}

	p.log.Info("proxy host deleted", "id", id)
	return nil
}

// ListProxyHosts returns every proxy host configured in NPM.
func (p *Provider) ListProxyHosts(ctx context.Context) ([]proxy.Host, error) {
	var rows []proxyHostRow
	if err := p.call(ctx, http.MethodGet, "api/nginx/proxy-hosts", nil, &rows, http.StatusOK); err != nil {
		return nil, err
	}
	hosts := make([]proxy.Host, 0, len(rows))
	for _, r := range rows {
		hosts = append(hosts, proxy.Host{
			ID:          r.ID,
			DomainNames: r.DomainNames,
			ForwardHost: r.ForwardHost,
			ForwardPort: r.ForwardPort,
			Enabled:     bool(r.Enabled),
		})
	}
	return hosts, nil
}

// Healthy reports whether the API schema endpoint answers.
func (p *Provider) Healthy(ctx context.Context) bool {
	resp, err := p.doRequest(ctx, http.MethodGet, "api/schema", "", nil)
	if err != nil {
		p.log.V(1).Info("health probe failed", "error", err.Error())
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
