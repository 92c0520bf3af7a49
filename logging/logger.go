// Package logging provides structured logging for the server. It keeps the
// call shape the rest of this codebase uses (package-level
// Trace/Debug/Info/Warn/Error/Fatal, a shared default logger, module-scoped
// trace gating) but is backed by logrus instead of a hand-rolled JSON writer
// and file rotator.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel mirrors logrus levels under the names this codebase has always
// used at call sites.
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
)

var levelFromString = map[string]LogLevel{
	"TRACE": TRACE,
	"DEBUG": DEBUG,
	"INFO":  INFO,
	"WARN":  WARN,
	"ERROR": ERROR,
	"FATAL": FATAL,
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger wraps a *logrus.Logger, adding the trace-module gate the teacher
// codebase uses to keep noisy per-subsystem tracing off by default.
type Logger struct {
	entry        *logrus.Logger
	mu           sync.RWMutex
	traceModules map[string]bool
	logPath      string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// NewLogger builds a Logger that writes JSON lines to <logDir>/cyberspace.log
// (or stderr if logDir is empty).
func NewLogger(logDir string, level LogLevel, traceModules []string) (*Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(level.logrusLevel())

	var logPath string
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath = filepath.Join(logDir, "cyberspace.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.SetOutput(f)
	} else {
		l.SetOutput(os.Stderr)
	}

	traceMap := make(map[string]bool, len(traceModules))
	for _, m := range traceModules {
		traceMap[strings.ToLower(m)] = true
	}

	return &Logger{entry: l, traceModules: traceMap, logPath: logPath}, nil
}

// InitLogger initializes the process-wide default logger exactly once.
func InitLogger(logDir string, level LogLevel, traceModules []string) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(logDir, level, traceModules)
	})
	return err
}

func GetLogger() *Logger {
	if defaultLogger == nil {
		logger, _ := NewLogger("", INFO, nil)
		return logger
	}
	return defaultLogger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry.SetLevel(level.logrusLevel())
}

func (l *Logger) SetLevelFromString(levelStr string) error {
	level, exists := levelFromString[strings.ToUpper(levelStr)]
	if !exists {
		return fmt.Errorf("invalid log level: %s", levelStr)
	}
	l.SetLevel(level)
	return nil
}

func (l *Logger) EnableTrace(modules []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range modules {
		l.traceModules[strings.ToLower(m)] = true
	}
}

func (l *Logger) DisableTrace(modules []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range modules {
		delete(l.traceModules, strings.ToLower(m))
	}
}

func toFields(data []map[string]interface{}) logrus.Fields {
	if len(data) == 0 {
		return logrus.Fields{}
	}
	return logrus.Fields(data[0])
}

func (l *Logger) traceEnabled(module string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.traceModules[strings.ToLower(module)]
}

func (l *Logger) Trace(module, message string, data ...map[string]interface{}) {
	if !l.traceEnabled(module) {
		return
	}
	fields := toFields(data)
	fields["trace_module"] = module
	l.entry.WithFields(fields).Trace(message)
}

func (l *Logger) Debug(message string, data ...map[string]interface{}) {
	l.entry.WithFields(toFields(data)).Debug(message)
}
func (l *Logger) Info(message string, data ...map[string]interface{}) {
	l.entry.WithFields(toFields(data)).Info(message)
}
func (l *Logger) Warn(message string, data ...map[string]interface{}) {
	l.entry.WithFields(toFields(data)).Warn(message)
}
func (l *Logger) Error(message string, data ...map[string]interface{}) {
	l.entry.WithFields(toFields(data)).Error(message)
}
func (l *Logger) Fatal(message string, data ...map[string]interface{}) {
	l.entry.WithFields(toFields(data)).Error(message)
	os.Exit(1)
}

func (l *Logger) IsTraceEnabled(module string) bool { return l.traceEnabled(module) }
func (l *Logger) IsDebugEnabled() bool              { return l.entry.IsLevelEnabled(logrus.DebugLevel) }
func (l *Logger) IsInfoEnabled() bool               { return l.entry.IsLevelEnabled(logrus.InfoLevel) }

// Package-level convenience functions delegate to the default logger, kept
// for call-site parity with the teacher codebase's logging.Info(...) style.

func Trace(module, message string, data ...map[string]interface{}) {
	GetLogger().Trace(module, message, data...)
}
func Debug(message string, data ...map[string]interface{}) { GetLogger().Debug(message, data...) }
func Info(message string, data ...map[string]interface{})  { GetLogger().Info(message, data...) }
func Warn(message string, data ...map[string]interface{})  { GetLogger().Warn(message, data...) }
func Error(message string, data ...map[string]interface{}) { GetLogger().Error(message, data...) }
func Fatal(message string, data ...map[string]interface{}) { GetLogger().Fatal(message, data...) }

func SetLevel(level LogLevel)            { GetLogger().SetLevel(level) }
func SetLevelFromString(s string) error  { return GetLogger().SetLevelFromString(s) }
func EnableTrace(modules []string)       { GetLogger().EnableTrace(modules) }
func DisableTrace(modules []string)      { GetLogger().DisableTrace(modules) }
func IsTraceEnabled(module string) bool  { return GetLogger().IsTraceEnabled(module) }
func IsDebugEnabled() bool               { return GetLogger().IsDebugEnabled() }
func IsInfoEnabled() bool                { return GetLogger().IsInfoEnabled() }
