// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default locations, expanded with ExpandPath before use.
const (
	DefaultDBPath            = "~/.config/deposit/deposit.db"
	DefaultTranscriptionsDir = "output/transcriptions"
	DefaultProcessedDir      = "output/processed"
)

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath returns the configured database path, or the default when
// configured is empty.
func DatabasePath(configured string) string {
	if strings.TrimSpace(configured) == "" {
		configured = DefaultDBPath
	}
	return ExpandPath(configured)
}

// ProcessedCSVPath returns where extracted records for source are written:
// <dir>/<stem>_data.csv, with a trailing _transcription dropped from the stem.
func ProcessedCSVPath(dir, source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = strings.TrimSuffix(stem, "_transcription")
	return filepath.Join(ExpandPath(dir), stem+"_data.csv")
}
