package main

import (
	"log/slog"
	"os"

	"github.com/realaaravdas/Limelight3-XNav/pkg/clilog"
)

func setupLogger(level, format string) *slog.Logger {
	return clilog.New(clilog.Config{Level: level, Format: format, Fallback: "json"},
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
