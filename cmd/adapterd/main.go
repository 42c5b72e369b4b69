package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/verifiable-backends/cmd/flags"
	"github.com/ruteri/verifiable-backends/common"
	"github.com/ruteri/verifiable-backends/compute"
	"github.com/ruteri/verifiable-backends/httpserver"
	"github.com/ruteri/verifiable-backends/interfaces"
	"github.com/ruteri/verifiable-backends/serviceresolver"
	"github.com/ruteri/verifiable-backends/storage"
)

var cliFlags = []cli.Flag{
	flags.ListenAddrFlag,
	flags.MetricsAddrFlag,
	flags.ComputeBackendFlag,
	flags.StorageBackendFlag,
	flags.DNSResolverFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:    "adapterd",
		Usage:   "serve verifiable compute and storage backends over HTTP",
		Version: common.Version,
		Flags:   cliFlags,
		Action:  runAdapterd,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runAdapterd(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	cfg := flags.ConfigureServer(cCtx, log)

	resolver := serviceresolver.NewResolver()
	if addr := cCtx.String(flags.DNSResolverFlag.Name); addr != "" {
		resolver.Addr = addr
	}

	computeBackends, err := buildComputeBackends(cCtx.StringSlice(flags.ComputeBackendFlag.Name), log, resolver)
	if err != nil {
		return err
	}
	storageBackends, err := buildStorageBackends(cCtx.StringSlice(flags.StorageBackendFlag.Name), log, resolver)
	if err != nil {
		return err
	}
	if len(computeBackends) == 0 && len(storageBackends) == 0 {
		return fmt.Errorf("no backends configured, pass at least one --compute-backend or --storage-backend")
	}

	for name := range computeBackends {
		log.Info("Compute backend configured", slog.String("backend", name))
	}
	for name := range storageBackends {
		log.Info("Storage backend configured", slog.String("backend", name))
	}

	handler := httpserver.NewHandler(computeBackends, storageBackends, nil, log)
	srv, err := httpserver.New(cfg, handler)
	if err != nil {
		log.Error("Failed to create HTTP server", "err", err)
		return err
	}

	log.Info("Starting adapterd",
		slog.String("listenAddr", cfg.ListenAddr),
		slog.String("version", common.Version),
	)
	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	// Shutdown server once termination signal is received
	srv.Shutdown()
	return nil
}

func buildComputeBackends(uris []string, log *slog.Logger, resolver *serviceresolver.Resolver) (map[string]interfaces.ComputeBackend, error) {
	factory := compute.NewFactory(log, resolver)
	backends := make(map[string]interfaces.ComputeBackend)
	for _, uri := range uris {
		loc, err := interfaces.ParseBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid compute backend URI %q: %w", uri, err)
		}
		backend, err := factory.ComputeBackendFor(loc)
		if err != nil {
			return nil, fmt.Errorf("compute backend %q: %w", uri, err)
		}
		backends[backend.Name()] = backend
	}
	return backends, nil
}

func buildStorageBackends(uris []string, log *slog.Logger, resolver *serviceresolver.Resolver) (map[string]interfaces.StorageBackend, error) {
	factory := storage.NewFactory(log, resolver)
	backends := make(map[string]interfaces.StorageBackend)
	for _, uri := range uris {
		loc, err := interfaces.ParseBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid storage backend URI %q: %w", uri, err)
		}
		backend, err := factory.StorageBackendFor(loc)
		if err != nil {
			return nil, fmt.Errorf("storage backend %q: %w", uri, err)
		}
		backends[backend.Name()] = backend
	}
	return backends, nil
}
