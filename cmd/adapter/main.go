package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/config"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/metrics"
	"github.com/StrathCole/external-adapter-go/pkg/server/api"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
	"github.com/StrathCole/external-adapter-go/pkg/version"

	// Import adapters to register them
	_ "github.com/StrathCole/external-adapter-go/pkg/server/sources/coinpaprika"
	_ "github.com/StrathCole/external-adapter-go/pkg/server/sources/ipfs"
	_ "github.com/StrathCole/external-adapter-go/pkg/server/sources/lily"
	_ "github.com/StrathCole/external-adapter-go/pkg/server/sources/lotus"
)

var (
	configFile  = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer     = flag.Bool("version", false, "Show version and exit")
	onlyAdapter = flag.String("adapter", "", "Serve only the named adapter")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("external-adapter version %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *onlyAdapter != "" {
		if err := restrictTo(cfg, *onlyAdapter); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting external-adapter", "version", version.Version, "adapters", len(cfg.EnabledAdapters()))

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- runServer(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Shutting down gracefully...")
	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out")
	}
	logger.Info("Shutdown complete")
}

// restrictTo disables every adapter but name and makes it the default.
func restrictTo(cfg *config.Config, name string) error {
	if _, ok := cfg.Adapter(name); !ok {
		return fmt.Errorf("%w: %s", config.ErrUnknownDefaultAdapter, name)
	}
	for i := range cfg.Adapters {
		if !strings.EqualFold(cfg.Adapters[i].Name, name) {
			cfg.Adapters[i].Enabled = false
		}
	}
	cfg.Server.DefaultAdapter = name
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var adapters []sources.Adapter
	defer func() {
		for _, a := range adapters {
			if err := a.Close(); err != nil {
				logger.Warn("Failed to close adapter", "adapter", a.Name(), "error", err)
			}
		}
	}()

	for _, adapterCfg := range cfg.EnabledAdapters() {
		opts, err := adapterCfg.Options(logger)
		if err != nil {
			return err
		}

		logger.Info("Initializing adapter", "type", adapterCfg.Type, "name", adapterCfg.Name,
			"dispatch", opts.Dispatch.String(), "partial", opts.Partial.String(), "overrides", opts.Overrides.Len())

		adapter, err := sources.Create(sources.AdapterType(adapterCfg.Type), opts)
		if err != nil {
			return fmt.Errorf("adapter %s: %w", adapterCfg.Name, err)
		}
		adapters = append(adapters, adapter)

		logger.Info("Adapter ready", "adapter", adapter.Name(), "endpoints", adapter.Endpoints(), "default_endpoint", adapter.DefaultEndpoint())
	}

	if len(adapters) == 0 {
		return errors.New("no adapters available")
	}

	server := api.NewServer(cfg.Server.HTTP.Addr, adapters, cfg.Server.DefaultAdapter, cfg.Server.RequestTimeout.ToDuration(), logger)
	if cfg.Server.HTTP.TLS.Enabled {
		server.SetTLS(cfg.Server.HTTP.TLS.Cert, cfg.Server.HTTP.TLS.Key)
	}

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		server.SetWebSocketServer(wsServer)

		go func() {
			if err := wsServer.Start(context.Background()); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		if wsServer != nil {
			wsServer.Stop()
		}
	}()

	return server.Start()
}
