package logging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanerInterval = time.Minute

// logDirCleaner periodically deletes the oldest log files once the directory
// grows beyond its byte budget. The active log file is never deleted.
type logDirCleaner struct {
	dir       string
	maxBytes  int64
	protected string
	cancel    context.CancelFunc
	done      chan struct{}
}

// startLogDirCleaner returns nil when no budget is configured.
func startLogDirCleaner(dir string, maxTotalSizeMB int, protectedPath string) *logDirCleaner {
	dir = strings.TrimSpace(dir)
	if maxTotalSizeMB <= 0 || dir == "" {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &logDirCleaner{
		dir:       filepath.Clean(dir),
		maxBytes:  int64(maxTotalSizeMB) * 1024 * 1024,
		protected: strings.TrimSpace(protectedPath),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if c.protected != "" {
		c.protected = filepath.Clean(c.protected)
	}
	go c.run(ctx)
	return c
}

func (c *logDirCleaner) stop() {
	if c == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *logDirCleaner) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(logDirCleanerInterval)
	defer ticker.Stop()
	for {
		deleted, err := enforceLogDirSizeLimit(c.dir, c.maxBytes, c.protected)
		if err != nil {
			log.WithError(err).Warn("logging: failed to enforce log directory size limit")
		} else if deleted > 0 {
			log.Debugf("logging: removed %d old log file(s)", deleted)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// enforceLogDirSizeLimit deletes log files oldest first until the directory fits
// maxBytes, skipping protected. It returns the number of deleted files.
func enforceLogDirSizeLimit(dir string, maxBytes int64, protected string) (int, error) {
	if maxBytes <= 0 || dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var files []logFile
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, entry.Name()), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	deleted := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if protected != "" && filepath.Clean(f.path) == protected {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: failed to remove old log file: %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		deleted++
	}
	return deleted, nil
}

// isLogFileName matches active and rotated lumberjack files (gateway-2025-01-01T00-00-00.000.log).
func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
