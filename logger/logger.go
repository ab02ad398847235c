package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"farm_monitor/config"
)

// LogLevel constants
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

var levels = map[string]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

// Logger writes leveled lines to a log file and optionally mirrors them to the console
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	debug *log.Logger
	err   *log.Logger
	out   io.Writer
	file  *os.File
	level int
}

var (
	mu  sync.RWMutex
	std = newConsole()
)

func newConsole() *Logger {
	return New(os.Stdout, os.Stderr, INFO)
}

// New builds a logger over explicit writers. Used by tests and by Init.
func New(out, errOut io.Writer, level string) *Logger {
	lvl, ok := levels[level]
	if !ok {
		lvl = levels[INFO]
	}
	return &Logger{
		info:  log.New(out, "", 0),
		warn:  log.New(out, "WARN: ", 0),
		debug: log.New(out, "DEBUG: ", 0),
		err:   log.New(errOut, "", 0),
		out:   out,
		level: lvl,
	}
}

// Init initializes the logging system using configuration
func Init(cfg config.LoggingConfig) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	logPath := cfg.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cwd, logPath)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	var out, errOut io.Writer = file, file
	if cfg.LogToConsole {
		out = io.MultiWriter(os.Stdout, file)
		errOut = io.MultiWriter(os.Stderr, file)
	}

	l := New(out, errOut, cfg.LogLevel)
	l.file = file

	mu.Lock()
	std = l
	mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	Printf("=== Session started at %s ===\n", timestamp)
	Printf("Log file: %s\n", logPath)
	Printf("Log level: %s\n", cfg.LogLevel)
	LogDivider()

	return nil
}

// Close closes the log file and falls back to console output
func Close() error {
	mu.Lock()
	l := std
	std = newConsole()
	mu.Unlock()

	if l.file == nil {
		return nil
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.info.Println("------------------------------------------------------------")
	l.info.Printf("=== Session ended at %s ===\n\n", timestamp)
	return l.file.Close()
}

// SetDefault replaces the package logger and returns the previous one
func SetDefault(l *Logger) *Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := std
	std = l
	return prev
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level string) bool {
	lvl, ok := levels[level]
	if !ok {
		return true
	}
	return lvl >= l.level
}

// Printf prints formatted text at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	if l.Enabled(INFO) {
		l.info.Printf(format, v...)
	}
}

// Println prints a line at info level
func (l *Logger) Println(v ...interface{}) {
	if l.Enabled(INFO) {
		l.info.Println(v...)
	}
}

// Debugf prints formatted debug text
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.Enabled(DEBUG) {
		l.debug.Printf(format, v...)
	}
}

// Warnf prints formatted warning text
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.Enabled(WARN) {
		l.warn.Printf(format, v...)
	}
}

// Errorf prints formatted error text (always logged regardless of level)
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.err.Printf("ERROR: "+format, v...)
}

// Writer returns the info stream, for access logs and other line-oriented output
func (l *Logger) Writer() io.Writer {
	return l.out
}

// Printf prints formatted text to log (respects log level)
func Printf(format string, v ...interface{}) { current().Printf(format, v...) }

// Println prints a line to log (respects log level)
func Println(v ...interface{}) { current().Println(v...) }

// Debugf prints formatted debug text
func Debugf(format string, v ...interface{}) { current().Debugf(format, v...) }

// Warnf prints formatted warning text
func Warnf(format string, v ...interface{}) { current().Warnf(format, v...) }

// Errorf prints formatted error text (always logged regardless of level)
func Errorf(format string, v ...interface{}) { current().Errorf(format, v...) }

// Writer returns the package logger's info stream
func Writer() io.Writer { return current().Writer() }

// Fatalf prints formatted fatal error and exits (always logged)
func Fatalf(format string, v ...interface{}) {
	current().err.Printf("FATAL: "+format, v...)
	Close()
	os.Exit(1)
}

// LogCommand logs the command being executed
func LogCommand(command string, args []string) {
	if len(args) > 1 {
		Printf("Command executed: %s %v\n", command, args[1:])
		return
	}
	Printf("Command executed: %s\n", command)
}

// LogDivider prints a divider line for better log organization
func LogDivider() {
	Println("------------------------------------------------------------")
}

// LogResult logs a result with status
func LogResult(operation string, success bool, details string) {
	status := "SUCCESS"
	mark := "✅"
	if !success {
		status = "FAILED"
		mark = "❌"
	}

	if details != "" {
		Printf("%s %s: %s - %s\n", mark, operation, status, details)
		return
	}
	Printf("%s %s: %s\n", mark, operation, status)
}

// LogProgress logs progress information
func LogProgress(done, total int, item string) {
	Printf("Progress: [%d/%d] %s\n", done, total, item)
}
