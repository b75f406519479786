package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"roadscan/internal/config"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger provides leveled logging (info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      map[string]*lumberjack.Logger
	mu         sync.Mutex
}

// Levels lists the log levels, each written to <level>.log.
var Levels = []string{"info", "warning", "error"}

// ErrUnknownLevel is returned for a level name outside Levels.
var ErrUnknownLevel = errors.New("unknown log level")

// FileName returns the log file name of level.
func FileName(level string) (string, error) {
	for _, l := range Levels {
		if l == level {
			return level + ".log", nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{files: make(map[string]*lumberjack.Logger)}
	logger.setupLoggers(config.LogDirectory, config.LogMaxSize)
	return logger
}

// NewWriterLogger creates a Logger that writes every level to w. Used by tests and tools.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		infoLog:    log.New(w, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile),
		warningLog: log.New(w, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLog:   log.New(w, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger(io.Discard)
}

// setupLoggers initializes rotating writers and per-level loggers.
func (l *Logger) setupLoggers(logDir string, maxSize int) {
	infoFile := l.openLogFile(logDir, "info", maxSize)
	warningFile := l.openLogFile(logDir, "warning", maxSize)
	errorFile := l.openLogFile(logDir, "error", maxSize)

	infoWriter := io.MultiWriter(os.Stdout, infoFile)
	warningWriter := io.MultiWriter(os.Stdout, warningFile)
	errorWriter := io.MultiWriter(os.Stderr, errorFile)

	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile returns a size-rotated writer for level.
func (l *Logger) openLogFile(logDir, level string, maxSize int) *lumberjack.Logger {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, level+".log"),
		MaxSize:    maxSize,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	l.files[level] = file
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Rotate moves the current file of level to a backup and starts a new one.
// Loggers without files ignore it.
func (l *Logger) Rotate(level string) error {
	if _, err := FileName(level); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, ok := l.files[level]
	if !ok {
		return nil
	}
	return file.Rotate()
}

// Close closes the rotated log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	for _, f := range l.files {
		err = multierr.Append(err, f.Close())
	}
	return err
}
