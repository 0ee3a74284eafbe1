package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Server         string
	Table          string
	Interval       time.Duration
	Follow         bool
	Count          int
	ConnectTimeout time.Duration
	LogLevel       string
	LogFormat      string
	ShowVersion    bool
	ShowHelp       bool
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

	flag.DurationVar(&cfg.Interval, "interval",
		getEnvDuration("XNAV_INTERVAL", time.Second),
		"Snapshot print interval (env: XNAV_INTERVAL)")

	flag.BoolVar(&cfg.Follow, "follow",
		getEnvBool("XNAV_FOLLOW", false),
		"Print on every new-targets delivery instead of the interval (env: XNAV_FOLLOW)")

	flag.BoolVar(&cfg.Follow, "f",
		getEnvBool("XNAV_FOLLOW", false),
		"Print on every new-targets delivery instead of the interval (env: XNAV_FOLLOW)")

	flag.IntVar(&cfg.Count, "count",
		getEnvInt("XNAV_COUNT", 0),
		"Exit after this many snapshots, 0 for unlimited (env: XNAV_COUNT)")

	flag.DurationVar(&cfg.ConnectTimeout, "connect-timeout",
		getEnvDuration("XNAV_CONNECT_TIMEOUT", 5*time.Second),
		"How long to wait for a live connection before printing anyway (env: XNAV_CONNECT_TIMEOUT)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("XNAV_LOG_LEVEL", "warn"),
		"Log level: debug, info, warn, error (env: XNAV_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("XNAV_LOG_FORMAT", "text"),
		"Log format: json, text (env: XNAV_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

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

	if cfg.Interval <= 0 {
		return fmt.Errorf("invalid interval: %s", cfg.Interval)
	}

	if cfg.Count < 0 {
		return fmt.Errorf("invalid count: %d", cfg.Count)
	}

	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid connect timeout: %s", cfg.ConnectTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Live XNav Snapshot Viewer

Connects through the xnavclient facade and prints the assembled vision
snapshot to stdout. Logs go to stderr.

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Snapshot once a second from a local server
  %s

  # Print on every new-targets delivery
  %s --follow

  # Five snapshots from a robot, then exit
  %s --server=nats://10.94.1.2:4222 --count=5

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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
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
