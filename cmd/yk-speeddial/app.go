package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/config"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-speeddial/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping/sqlite"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/netutil"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/provisioner"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/proxy"
	_ "github.com/yuriy-kovalchuk/yk-speeddial/internal/proxy/providers"
)

// app holds the wired components shared by every command.
type app struct {
	provisioner *provisioner.Provisioner
	store       mapping.Store
}

func newApp(log logr.Logger, cfg *config.Config) (*app, error) {
	setupLog := log.WithName("setup")

	proxyIP := cfg.ProxyIP
	if proxyIP == config.ProxyIPAuto {
		detected, err := netutil.DetectIPv4()
		if err != nil {
			return nil, fmt.Errorf("unable to detect proxy IP: %w", err)
		}
		proxyIP = detected
		setupLog.Info("detected proxy IP", "ip", proxyIP)
	}

	dnsProvider, err := dns.NewProvider(cfg.DNS.Provider, log.WithName("dns-"+cfg.DNS.Provider), cfg.DNS.Settings)
	if err != nil {
		return nil, fmt.Errorf("unable to create DNS provider: %w", err)
	}
	setupLog.Info("loaded DNS provider", "provider", cfg.DNS.Provider)

	proxyProvider, err := proxy.NewProvider(cfg.Proxy.Provider, log.WithName("proxy-"+cfg.Proxy.Provider), cfg.Proxy.Settings)
	if err != nil {
		return nil, fmt.Errorf("unable to create proxy provider: %w", err)
	}
	setupLog.Info("loaded proxy provider", "provider", cfg.Proxy.Provider)

	store, err := openStore(log.WithName("store"), cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("unable to open mapping store: %w", err)
	}
	setupLog.Info("opened mapping store", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	return &app{
		store: store,
		provisioner: &provisioner.Provisioner{
			Log:            log.WithName("provisioner"),
			DNS:            dnsProvider,
			Proxy:          proxyProvider,
			Store:          store,
			ProxyIP:        cfg.ProxyIPOverrides.Resolver(proxyIP),
			RequestTimeout: cfg.RequestTimeout,
		},
	}, nil
}

func openStore(log logr.Logger, cfg config.StoreConfig) (mapping.Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		return sqlite.Open(log, cfg.Path)
	case config.StoreFile:
		return mapping.NewFileStore(log, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing store: %v\n", err)
	}
}
