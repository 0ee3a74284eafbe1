// Package main implements xnav-dash, the dashboard bridge. It exposes
// the live XNav snapshot to browser frontends: a REST endpoint for
// polling, a WebSocket channel pushed on every new-targets delivery,
// control endpoints for match mode and the turret, and optional
// Prometheus metrics for the fabric transport underneath.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/realaaravdas/Limelight3-XNav/natsfabric"
	"github.com/realaaravdas/Limelight3-XNav/xnavclient"
)

// Build information constants
const (
	Version   = "0.3.0"
	BuildTime = "dev"
	appName   = "xnav-dash"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Dashboard bridge failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// The fabric connection is built here rather than inside the client
	// so the metrics registry can be threaded into it.
	var registry *prometheus.Registry
	connOpts := []natsfabric.Option{
		natsfabric.WithServer(cliCfg.Server),
		natsfabric.WithLogger(natsfabric.NewSlogLogger(logger)),
	}
	if cliCfg.Metrics {
		registry = prometheus.NewRegistry()
		connOpts = append(connOpts, natsfabric.WithMetricsRegistry(registry))
	}
	conn := natsfabric.New(connOpts...)

	client, err := xnavclient.New(
		xnavclient.WithConn(conn),
		xnavclient.WithTable(cliCfg.Table),
		xnavclient.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	slog.Info("Connecting to fabric", "server", cliCfg.Server, "table", cliCfg.Table)
	if err := client.Init(signalCtx, ""); err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	server := newServer(client, logger, registry, serverConfig{
		Addr:         cliCfg.HTTPAddr,
		PushInterval: cliCfg.PushInterval,
	})

	if err := server.Start(signalCtx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	slog.Info("Dashboard bridge started",
		"addr", cliCfg.HTTPAddr,
		"metrics", cliCfg.Metrics,
		"push_interval", cliCfg.PushInterval)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}
	if err := client.Close(shutdownCtx); err != nil {
		slog.Warn("Client close error", "error", err)
	}
	if err := conn.Close(shutdownCtx); err != nil {
		slog.Warn("Fabric close error", "error", err)
	}

	slog.Info("Dashboard bridge shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting XNav dashboard bridge",
		"version", Version,
		"build_time", BuildTime)

	return cliCfg, logger, false, nil
}
