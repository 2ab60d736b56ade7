package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/assessly/assessly-gateway/internal/logging"
	log "github.com/sirupsen/logrus"
)

// LogHook copies log entries of the embedded gateway into the Logs tab. Lines are
// rendered with the gateway's own formatter. When the buffer is full the oldest
// line is dropped so logging never blocks on the terminal.
type LogHook struct {
	ch        chan string
	mu        sync.Mutex
	formatter log.Formatter
}

func NewLogHook(bufSize int) *LogHook {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &LogHook{
		ch:        make(chan string, bufSize),
		formatter: &logging.LogFormatter{},
	}
}

// SetFormatter replaces the formatter used for captured lines.
func (h *LogHook) SetFormatter(f log.Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

func (h *LogHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *LogHook) Fire(entry *log.Entry) error {
	h.mu.Lock()
	f := h.formatter
	h.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", entry.Level, entry.Message)
	if f != nil {
		// The entry buffer belongs to the primary formatter call; format into a fresh one.
		clone := *entry
		clone.Buffer = nil
		if b, err := f.Format(&clone); err == nil {
			line = strings.TrimRight(string(b), "\r\n")
		}
	}

	for {
		select {
		case h.ch <- line:
			return nil
		default:
		}
		select {
		case <-h.ch:
		default:
		}
	}
}

// Chan returns the captured lines.
func (h *LogHook) Chan() <-chan string {
	return h.ch
}
