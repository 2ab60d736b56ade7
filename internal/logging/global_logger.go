package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const mainLogFile = "gateway.log"

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
	cleaner        *logDirCleaner
)

// LogFormatter renders entries as
// [2025-12-23 20:14:04] [a1b2c3d4] [info ] [proxy.go:88] forwarded request prefix=questions status=200
type LogFormatter struct{}

// logFieldOrder lists the fields printed after the message, in order. Other fields are dropped.
var logFieldOrder = []string{"client", "method", "prefix", "upstream", "status", "kind", "session", "remaining", "error"}

// Format renders a single log entry.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fields []string
	for _, k := range logFieldOrder {
		if v, ok := entry.Data[k]; ok {
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
	}
	fieldsStr := ""
	if len(fields) > 0 {
		fieldsStr = " " + strings.Join(fields, " ")
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")
	if entry.Caller != nil {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] [%s:%d] %s%s\n", timestamp, reqID, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] %s%s\n", timestamp, reqID, level, message, fieldsStr)
	}
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and routes Gin's own
// output through it. Only the first call has an effect.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		ginInfoWriter = log.StandardLogger().Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...interface{}) {
			log.StandardLogger().Debugf(strings.TrimRight(format, "\r\n"), values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// ResolveLogDirectory returns WRITABLE_PATH/logs when set, otherwise ./logs.
func ResolveLogDirectory() string {
	if base := util.WritablePath(); base != "" {
		return filepath.Join(base, "logs")
	}
	return "logs"
}

// ConfigureLogOutput switches between a rotating log file and stdout. It may be
// called again after a config reload.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	logDir := ResolveLogDirectory()
	protectedPath := ""
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if cfg != nil && cfg.LoggingToFile {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		protectedPath = filepath.Join(logDir, mainLogFile)
		logWriter = &lumberjack.Logger{
			Filename:   protectedPath,
			MaxSize:    10,
			MaxBackups: 5,
			LocalTime:  true,
		}
		log.SetOutput(logWriter)
	} else {
		log.SetOutput(os.Stdout)
	}

	maxMB := 0
	if cfg != nil {
		maxMB = cfg.LogsMaxTotalSizeMB
	}
	if cleaner != nil {
		cleaner.stop()
		cleaner = nil
	}
	cleaner = startLogDirCleaner(logDir, maxMB, protectedPath)
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if cleaner != nil {
		cleaner.stop()
		cleaner = nil
	}
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
		ginInfoWriter = nil
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
		ginErrorWriter = nil
	}
}
