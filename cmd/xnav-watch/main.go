// Package main implements xnav-watch, a terminal viewer for the live
// XNav snapshot. It connects through the xnavclient facade (the same
// path robot code uses) and prints the assembled state either at a
// fixed interval or on every new-targets delivery.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/realaaravdas/Limelight3-XNav/xnavclient"
)

// Build information constants
const (
	Version   = "0.3.0"
	BuildTime = "dev"
	appName   = "xnav-watch"
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
		slog.Error("Watch failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, _, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	client, err := xnavclient.New(xnavclient.WithTable(cliCfg.Table))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	slog.Info("Connecting", "server", cliCfg.Server, "table", cliCfg.Table)
	if err := client.Init(signalCtx, cliCfg.Server); err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := client.Close(closeCtx); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}()

	waitCtx, waitCancel := context.WithTimeout(signalCtx, cliCfg.ConnectTimeout)
	connected := waitConnected(waitCtx, client)
	waitCancel()
	if !connected {
		slog.Warn("No live connection yet, snapshots will show defaults")
	}

	return watch(signalCtx, client, cliCfg, os.Stdout)
}

// waitConnected polls connection liveness until it is up or ctx ends.
func waitConnected(ctx context.Context, client *xnavclient.Client) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if client.IsConnected() {
			return true
		}
		select {
		case <-ctx.Done():
			return client.IsConnected()
		case <-ticker.C:
		}
	}
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

	return cliCfg, logger, false, nil
}
