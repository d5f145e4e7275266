// Package logging provides the daemon's leveled, component-tagged logger.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gitlab_nss_daemon/config"
)

// Level is a logging verbosity threshold. Messages at or below the global
// level are emitted.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config string to a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, true
	case "warn", "warning":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return LevelInfo, false
	}
}

var globalLevel atomic.Int32

// SetGlobalLevel sets the verbosity threshold for every Logger.
func SetGlobalLevel(level Level) {
	globalLevel.Store(int32(level))
}

// SetGlobalLevelFromString applies a config log_level value. Unknown values
// leave the level unchanged and report false.
func SetGlobalLevelFromString(s string) bool {
	level, ok := ParseLevel(s)
	if ok {
		SetGlobalLevel(level)
	}
	return ok
}

// GlobalLevel reports the current verbosity threshold.
func GlobalLevel() Level {
	return Level(globalLevel.Load())
}

// Logger tags messages with the component that emitted them. The zero-cost
// way to get one per package is a package-level var.
type Logger struct {
	component string
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if GlobalLevel() < level {
		return
	}
	log.Printf("["+level.String()+"] ["+l.component+"] "+format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) { l.logf(LevelError, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Trace(format string, args ...interface{}) { l.logf(LevelTrace, format, args...) }

// Fatal logs at error level and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	log.Printf("["+LevelError.String()+"] ["+l.component+"] "+format, args...)
	os.Exit(1)
}

// Setup routes the standard logger to stdout plus the given log file. A file
// open failure is reported and leaves output on stdout.
func Setup(logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("[ERROR] Failed to open log file %s, using stdout: %v", logPath, err)
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Logging to file: %s", logPath)
	return nil
}

// SetupDefault routes logging to the daemon's default log file.
func SetupDefault() error {
	return Setup(config.LogPath)
}
