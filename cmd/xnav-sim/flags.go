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
	Server          string
	Table           string
	ScenePath       string
	Rate            float64
	Duration        time.Duration
	Seed            int
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
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

	flag.StringVar(&cfg.ScenePath, "scene",
		getEnv("XNAV_SCENE", ""),
		"Path to YAML scene file, empty for the built-in two-tag scene (env: XNAV_SCENE)")

	flag.Float64Var(&cfg.Rate, "rate",
		getEnvFloat("XNAV_RATE", 30),
		"Frame rate in Hz (env: XNAV_RATE)")

	flag.DurationVar(&cfg.Duration, "duration",
		getEnvDuration("XNAV_DURATION", 0),
		"Stop after this long, 0 to run until interrupted (env: XNAV_DURATION)")

	flag.IntVar(&cfg.Seed, "seed",
		getEnvInt("XNAV_SEED", 0),
		"Noise seed for reproducible runs, 0 for random (env: XNAV_SEED)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("XNAV_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: XNAV_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("XNAV_LOG_FORMAT", "text"),
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
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate scene and exit")

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

	// Validate scene file exists when one was named
	if cfg.ScenePath != "" {
		if _, err := os.Stat(cfg.ScenePath); err != nil {
			return fmt.Errorf("scene file not found: %s", cfg.ScenePath)
		}
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

	// Validate frame rate
	if cfg.Rate <= 0 || cfg.Rate > 250 {
		return fmt.Errorf("invalid frame rate: %.1f (want 0 < rate <= 250)", cfg.Rate)
	}

	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration: %s", cfg.Duration)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - XNav Coprocessor Simulator

Publishes synthetic vision frames (detections, robot pose, offset
point) to the topic fabric the way the real coprocessor does.

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Simulate against a local server with the built-in scene
  %s

  # Custom scene at 50 Hz for one minute
  %s --scene=field.yaml --rate=50 --duration=1m

  # Reproducible noise and a remote server
  export XNAV_SERVER=nats://10.94.1.2:4222
  %s --seed=42

  # Validate a scene file only
  %s --scene=field.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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
