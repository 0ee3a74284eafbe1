package main

import (
	"log/slog"
	"os"

	"github.com/realaaravdas/Limelight3-XNav/pkg/clilog"
)

// setupLogger defaults to text: the simulator is usually watched on a
// terminal.
func setupLogger(level, format string) *slog.Logger {
	return clilog.New(clilog.Config{Level: level, Format: format, Fallback: "text"},
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
