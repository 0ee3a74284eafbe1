package main

import (
	"log/slog"
	"os"

	"github.com/realaaravdas/Limelight3-XNav/pkg/clilog"
)

// setupLogger writes to stderr: stdout is reserved for the snapshot
// table.
func setupLogger(level, format string) *slog.Logger {
	return clilog.New(clilog.Config{Level: level, Format: format, Fallback: "text", Output: os.Stderr},
		"service", appName,
		"version", Version,
	)
}
