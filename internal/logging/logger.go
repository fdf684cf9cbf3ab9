package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const logDirEnvVar = "ARCHIE_LOG_DIR"

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal, printf-style logging contract so packages can
// depend on logging without knowing where output goes.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var (
	baseOnce   sync.Once
	baseLogger *fileLogger
)

// fileLogger writes to archie-debug.log, mirroring WARN and above to stderr.
type fileLogger struct {
	mu        sync.Mutex
	file      *os.File
	logger    *log.Logger
	level     LogLevel
	component string
}

// NewComponentLogger returns the default application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	base := getBaseLogger()
	return &fileLogger{
		file:      base.file,
		logger:    base.logger,
		level:     base.level,
		component: component,
	}
}

func getBaseLogger() *fileLogger {
	baseOnce.Do(func() {
		level := INFO
		if strings.EqualFold(os.Getenv("ARCHIE_LOG_LEVEL"), "debug") {
			level = DEBUG
		}

		dir := os.Getenv(logDirEnvVar)
		if dir == "" {
			dir = os.TempDir()
		}

		baseLogger = &fileLogger{level: level}
		path := filepath.Join(dir, "archie-debug.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			// Fall back to stderr-only logging.
			baseLogger.logger = log.New(os.Stderr, "", 0)
			return
		}
		baseLogger.file = file
		baseLogger.logger = log.New(file, "", 0)
	})
	return baseLogger
}

func (l *fileLogger) write(level LogLevel, levelName, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] [%s] %s",
		time.Now().Format("2006-01-02 15:04:05.000"), levelName, l.component, msg)

	if l.logger != nil {
		l.logger.Println(line)
	}
	if level >= WARN && l.file != nil {
		fmt.Fprintln(os.Stderr, line)
	}
}

func (l *fileLogger) Debug(format string, args ...any) { l.write(DEBUG, "DEBUG", format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.write(INFO, "INFO", format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.write(WARN, "WARN", format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.write(ERROR, "ERROR", format, args...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if logger == nil {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
