package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// ProxyIPAuto asks for the proxy IP to be detected from the local interfaces.
	ProxyIPAuto = "auto"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the application configuration.
type Config struct {
	Listen               string          `yaml:"listen"`
	ProbeListen          string          `yaml:"probe_listen"`
	MetricsListen        string          `yaml:"metrics_listen"`
	APIKey               string          `yaml:"api_key"`
	ProxyIP              string          `yaml:"proxy_ip"`
	ProxyIPOverrides     *DomainMap      `yaml:"proxy_ip_overrides"`
	ProxyIPOverridesFile string          `yaml:"proxy_ip_overrides_file"`
	RequestTimeout       time.Duration   `yaml:"request_timeout"`
	Store                StoreConfig     `yaml:"store"`
	DNS                  *ProviderConfig `yaml:"dns"`
	Proxy                *ProviderConfig `yaml:"proxy"`
}

// StoreConfig selects the mapping store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Load reads the configuration from the path specified by the
// SPEEDDIAL_CONFIG_PATH environment variable, defaulting to
// "configs/speeddial.yaml".
func Load() (*Config, error) {
	path := os.Getenv("SPEEDDIAL_CONFIG_PATH")
	if path == "" {
		path = "configs/speeddial.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from the given file path, applies
// defaults and validates it.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.APIKey = os.ExpandEnv(cfg.APIKey)
	cfg.ProxyIP = os.ExpandEnv(cfg.ProxyIP)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)

	// Inline overrides win over the file; a relative file path resolves
	// against the config file's directory.
	if cfg.ProxyIPOverridesFile != "" {
		overridesPath := os.ExpandEnv(cfg.ProxyIPOverridesFile)
		if !filepath.IsAbs(overridesPath) {
			overridesPath = filepath.Join(filepath.Dir(path), overridesPath)
		}
		fileMap, err := LoadDomainMap(overridesPath)
		if err != nil {
			return nil, err
		}
		cfg.ProxyIPOverridesFile = overridesPath
		cfg.ProxyIPOverrides = fileMap.merge(cfg.ProxyIPOverrides)
	}
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.ProbeListen == "" {
		c.ProbeListen = ":8081"
	}
	if c.MetricsListen == "" {
		c.MetricsListen = ":9090"
	}
	if c.ProxyIP == "" {
		c.ProxyIP = ProxyIPAuto
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreFile
	}
	if c.Store.Path == "" {
		if c.Store.Driver == StoreSQLite {
			c.Store.Path = "data/speeddial.db"
		} else {
			c.Store.Path = "data/mappings.json"
		}
	}
	if c.ProxyIPOverrides == nil {
		c.ProxyIPOverrides = NewDomainMap(nil)
	}
}

func (c *Config) validate() error {
	if c.DNS == nil {
		return fmt.Errorf("config: missing required section 'dns'")
	}
	if err := c.DNS.validate("dns"); err != nil {
		return err
	}
	if c.Proxy == nil {
		return fmt.Errorf("config: missing required section 'proxy'")
	}
	if err := c.Proxy.validate("proxy"); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}

	if c.ProxyIP != ProxyIPAuto {
		if _, err := netip.ParseAddr(c.ProxyIP); err != nil {
			return fmt.Errorf("config: invalid proxy_ip %q", c.ProxyIP)
		}
	}
	for _, domain := range c.ProxyIPOverrides.Domains() {
		ip, _ := c.ProxyIPOverrides.LookupIP(domain)
		if _, err := netip.ParseAddr(ip); err != nil {
			return fmt.Errorf("config: invalid proxy IP %q for %s", ip, domain)
		}
	}
	return nil
}
