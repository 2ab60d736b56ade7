// Package util holds small helpers shared by the gateway and the terminal client:
// log level switching, path resolution, outbound proxy setup and secret masking.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/assessly/assessly-gateway/internal/config"
	log "github.com/sirupsen/logrus"
)

// SetLogLevel switches logrus between debug and info according to cfg.Debug.
func SetLogLevel(cfg *config.Config) {
	if cfg == nil {
		return
	}
	currentLevel := log.GetLevel()
	newLevel := log.InfoLevel
	if cfg.Debug {
		newLevel = log.DebugLevel
	}
	if currentLevel != newLevel {
		log.SetLevel(newLevel)
		log.Infof("log level changed from %s to %s (debug=%t)", currentLevel, newLevel, cfg.Debug)
	}
}

// ExpandHome expands a leading ~ to the user's home directory and cleans the path.
func ExpandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	remainder := strings.TrimLeft(strings.TrimPrefix(path, "~"), "/\\")
	if remainder == "" {
		return filepath.Clean(home), nil
	}
	return filepath.Clean(filepath.Join(home, filepath.FromSlash(strings.ReplaceAll(remainder, "\\", "/")))), nil
}

// WritablePath returns the cleaned WRITABLE_PATH environment variable when it is set.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return filepath.Clean(trimmed)
			}
		}
	}
	return ""
}
