package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Server          string
	Table           string
	HTTPAddr        string
	PushInterval    time.Duration
	Metrics         bool
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.Server, "server",
		getEnv("XNAV_SERVER", "nats://localhost:4222"),
		"Fabric server URL (env: XNAV_SERVER)")

	flag.StringVar(&cfg.Server, "s",
		getEnv("XNAV_SERVER", "nats://localhost:4222"),
		"Fabric server URL (env: XNAV_SERVER)")

	flag.StringVar(&cfg.Table, "table",
		getEnv("XNAV_TABLE", "XNav"),
		"Root table name (env: XNAV_TABLE)")

	flag.StringVar(&cfg.HTTPAddr, "http-addr",
		getEnv("XNAV_HTTP_ADDR", ":8080"),
		"HTTP listen address (env: XNAV_HTTP_ADDR)")

	flag.DurationVar(&cfg.PushInterval, "push-interval",
		getEnvDuration("XNAV_PUSH_INTERVAL", time.Second),
		"Periodic status push interval for WebSocket clients (env: XNAV_PUSH_INTERVAL)")

	flag.BoolVar(&cfg.Metrics, "metrics",
		getEnvBool("XNAV_METRICS", false),
		"Expose Prometheus metrics at /metrics (env: XNAV_METRICS)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("XNAV_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: XNAV_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("XNAV_LOG_FORMAT", "json"),
		"Log format: json, text (env: XNAV_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("XNAV_DEBUG", false),
		"Enable debug mode (env: XNAV_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("XNAV_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: XNAV_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate HTTP listen address
	if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("invalid http address %q: %w", cfg.HTTPAddr, err)
	}

	if cfg.PushInterval <= 0 {
		return fmt.Errorf("invalid push interval: %s", cfg.PushInterval)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - XNav Dashboard Bridge

Serves the live XNav snapshot to dashboard frontends:

  GET  /api/status     JSON snapshot document
  POST /api/matchmode  Set match performance mode: {"enabled": bool}
  POST /api/turret     Set turret inputs: {"angle": deg, "enabled": bool}
  GET  /ws             WebSocket push channel (snapshot + status ticks)
  GET  /metrics        Prometheus metrics (with --metrics)

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Bridge a local fabric onto :8080
  %s

  # Robot-side deployment with metrics
  %s --server=nats://10.94.1.2:4222 --http-addr=:8080 --metrics

  # Faster status ticks for a match dashboard
  %s --push-interval=250ms

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
