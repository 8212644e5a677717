// Package main runs the component container with its HTTP and NATS gateways.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/componentregistry"
	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/container"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/errors"
	httpgateway "github.com/c360/beancontainer/gateway/http"
	natsgateway "github.com/c360/beancontainer/gateway/nats"
	"github.com/c360/beancontainer/metric"
	"github.com/c360/beancontainer/natsclient"
	"github.com/c360/beancontainer/pkg/retry"
)

// Build information
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "beancontainer"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp(fs)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPaths)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid", "layers", cliCfg.ConfigPaths)
		return nil
	}
	if cliCfg.ShutdownTimeout > 0 {
		cfg.Container.ShutdownTimeout = config.Duration(cliCfg.ShutdownTimeout)
	}

	slog.Info("Starting component container",
		"version", Version,
		"build_time", BuildTime,
		"app", cfg.Container.App,
		"module", cfg.Container.Module)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, cfg, logger)
}

// loadConfig merges the given layers over the defaults and the environment
func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	for _, path := range paths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// serve wires the runtime, blocks until ctx ends, then shuts everything down
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := metric.NewMetricsRegistry()

	var natsClient *natsclient.Client
	if cfg.NATS.Enabled {
		client, err := connectToNATS(ctx, cfg.NATS, logger)
		if err != nil {
			return err
		}
		natsClient = client
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := natsClient.Close(closeCtx); err != nil {
				slog.Warn("Error closing NATS connection", "error", err)
			}
		}()
	}

	store, err := openDataStore(ctx, cfg.DataStore, natsClient, logger)
	if err != nil {
		return err
	}

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	slog.Info("Component definitions registered", "count", len(registry.List()))

	opts := []container.Option{
		container.WithLogger(logger),
		container.WithMetricsRegistry(metrics),
	}
	if natsClient != nil {
		opts = append(opts, container.WithProbe("nats", func(context.Context) error {
			if !natsClient.IsHealthy() {
				return errors.Newf(errors.ErrNoConnection, "nats status %s", natsClient.Status())
			}
			return nil
		}))
	}

	c, err := container.New(cfg, registry, store, opts...)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	var httpServer *httpgateway.Server
	if cfg.HTTP.Enabled {
		httpServer, err = httpgateway.New(c, cfg.HTTP, httpgateway.WithLogger(logger), httpgateway.WithMetricsRegistry(metrics))
		if err == nil {
			err = httpServer.Start(ctx)
		}
		if err != nil {
			_ = c.Stop(context.Background())
			return fmt.Errorf("start HTTP gateway: %w", err)
		}
	}

	var natsServer *natsgateway.Server
	if natsClient != nil {
		natsServer, err = natsgateway.New(natsClient, c, cfg.NATS, logger)
		if err == nil {
			err = natsServer.Start(ctx)
		}
		if err != nil {
			_ = c.Stop(context.Background())
			return fmt.Errorf("start NATS gateway: %w", err)
		}
	}

	slog.Info("Component container started")
	<-ctx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Container.ShutdownTimeout.Std())
	defer shutdownCancel()

	if natsServer != nil {
		natsServer.Stop()
	}
	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			slog.Warn("HTTP gateway shutdown incomplete", "error", err)
		}
	}
	if err := c.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Component container shutdown complete")
	return nil
}

// connectToNATS connects with retries and waits for the connection to be ready
func connectToNATS(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithReconnectWait(cfg.ReconnectWait.Std()),
		natsclient.WithLogger(natsclient.NewSlogLogger(logger.With("component", "natsclient"))),
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}

	client, err := natsclient.NewClient(cfg.URLs[0], opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.URLs[0])
	if err := retry.Do(ctx, retry.Quick(), func() error { return client.Connect(ctx) }); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// openDataStore returns the configured data store backend
func openDataStore(ctx context.Context, cfg config.DataStoreConfig, client *natsclient.Client, logger *slog.Logger) (datastore.DataStore, error) {
	if cfg.Backend != config.BackendKV {
		return datastore.NewMemory(), nil
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "beancontainer records",
		History:     uint8(max(1, min(cfg.History, 64))),
	})
	if err != nil {
		return nil, fmt.Errorf("open data store bucket %s: %w", cfg.Bucket, err)
	}
	slog.Info("Using KV data store", "bucket", cfg.Bucket)
	return datastore.NewKV(client.NewKVStore(bucket), logger), nil
}
