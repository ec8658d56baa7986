package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/api"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/config"
	"github.com/yuriy-kovalchuk/yk-speeddial/internal/provisioner"
)

var Version = "dev"

const usage = `usage: yk-speeddial [flags] [command]

commands:
  serve                            run the API, probe and metrics servers (default)
  add <hostname> <target> <port>   provision a hostname
  remove <hostname|id>             remove a mapping
  list                             list active mappings
  history <hostname>               show every record for a hostname
  status                           check DNS and proxy reachability

flags:
`

func main() {
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	configPath := flag.String("config", "", "path to the config file (default $SPEEDDIAL_CONFIG_PATH or configs/speeddial.yaml)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	ctx := ctrl.SetupSignalHandler()

	a, err := newApp(ctrl.Log, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "serve":
		return serve(ctx, ctrl.Log.WithName("setup"), cfg, a.provisioner)
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("add: expected <hostname> <target> <port>")
		}
		port, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("add: invalid port %q", args[2])
		}
		return report(a.provisioner.AddMapping(ctx, args[0], args[1], port))
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("remove: expected <hostname|id>")
		}
		return report(a.provisioner.RemoveMapping(ctx, args[0]))
	case "list":
		mappings, err := a.provisioner.ListMappings(ctx)
		if err != nil {
			return fmt.Errorf("listing mappings: %w", err)
		}
		fmt.Print(provisioner.FormatMappings(mappings))
		return nil
	case "history":
		if len(args) != 1 {
			return fmt.Errorf("history: expected <hostname>")
		}
		mappings, err := a.provisioner.History(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		fmt.Print(provisioner.FormatMappings(mappings))
		return nil
	case "status":
		status := a.provisioner.Health(ctx)
		fmt.Print(provisioner.FormatHealth(status))
		if !status.DNS || !status.Proxy {
			return fmt.Errorf("one or more remote systems are unreachable")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q (see -help)", command)
	}
}

func report(res provisioner.Result) error {
	fmt.Print(provisioner.FormatResult(res))
	if !res.Success {
		return fmt.Errorf("operation failed")
	}
	return nil
}

// serve runs the API, probe and metrics servers until ctx is cancelled or one
// of them fails.
func serve(ctx context.Context, log logr.Logger, cfg *config.Config, p *provisioner.Provisioner) error {
	log.Info("starting yk-speeddial", "version", Version)

	apiServer := api.New(cfg, p, ctrl.Log.WithName("api"))
	probeServer := api.NewProbeServer(cfg.ProbeListen, map[string]healthz.Checker{
		"dns":   api.Checker("dns", p.DNS.Healthy),
		"proxy": api.Checker("proxy", p.Proxy.Healthy),
	})
	metricsServer := api.NewMetricsServer(cfg.MetricsListen)

	servers := []struct {
		name   string
		listen func() error
		stop   func(context.Context) error
	}{
		{"api", apiServer.ListenAndServe, apiServer.Shutdown},
		{"probes", probeServer.ListenAndServe, probeServer.Shutdown},
		{"metrics", metricsServer.ListenAndServe, metricsServer.Shutdown},
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		log.Info("starting server", "server", s.name)
		go func(name string, listen func() error) {
			if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}(s.name, s.listen)
	}
	log.Info("listening", "api", cfg.Listen, "probes", cfg.ProbeListen, "metrics", cfg.MetricsListen)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		if err := s.stop(shutdownCtx); err != nil {
			log.Error(err, "shutting down server", "server", s.name)
		}
	}
	return runErr
}
