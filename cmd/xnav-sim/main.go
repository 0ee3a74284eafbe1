// Package main implements the XNav coprocessor simulator. It publishes
// synthetic vision frames (tag detections, robot pose, offset point) to
// the topic fabric under the coprocessor identity, so robot-side code
// built on xnavclient can run without cameras or real hardware.
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

	"github.com/google/uuid"

	"github.com/realaaravdas/Limelight3-XNav/natsfabric"
	"github.com/realaaravdas/Limelight3-XNav/topics"
)

// Build information constants
const (
	Version   = "0.3.0"
	BuildTime = "dev"
	appName   = "xnav-sim"
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
		slog.Error("Simulator failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	scene, err := loadScene(cliCfg.ScenePath)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Scene is valid", "tags", len(scene.Tags), "path", cliCfg.ScenePath)
		return nil
	}

	runID := uuid.NewString()

	conn := natsfabric.New(
		natsfabric.WithServer(cliCfg.Server),
		natsfabric.WithLogger(natsfabric.NewSlogLogger(logger)),
	)
	table := conn.Table(cliCfg.Table)

	sim, err := newSimulator(table, scene, logger.With("run_id", runID), cliCfg.Seed)
	if err != nil {
		return fmt.Errorf("bind topics: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	slog.Info("Connecting to fabric",
		"server", cliCfg.Server,
		"table", cliCfg.Table,
		"identity", topics.CoprocessorIdentity)
	if err := conn.Start(signalCtx, topics.CoprocessorIdentity); err != nil {
		return fmt.Errorf("start fabric client: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(signalCtx, 10*time.Second)
	err = conn.WaitReady(waitCtx)
	waitCancel()
	if err != nil {
		slog.Warn("Fabric not reachable yet, frames will queue until it is", "error", err)
	}

	slog.Info("Simulator running",
		"rate_hz", cliCfg.Rate,
		"tags", len(scene.Tags),
		"run_id", runID)
	sim.run(signalCtx, cliCfg.Rate, cliCfg.Duration)

	slog.Info("Shutting down", "frames", sim.frames)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer closeCancel()
	if err := conn.Close(closeCtx); err != nil {
		return fmt.Errorf("close fabric client: %w", err)
	}

	slog.Info("Simulator shutdown complete")
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

	slog.Info("Starting XNav simulator",
		"version", Version,
		"build_time", BuildTime,
		"scene", cliCfg.ScenePath)

	return cliCfg, logger, false, nil
}
