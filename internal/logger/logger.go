package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a LOG_LEVEL value into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	FileName      string // e.g. "whisper.log" -> whisper-20060102.log
	Level         Level
	RetentionDays int
	Console       bool // mirror to stderr in human-readable form
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		LogDir:        ".",
		FileName:      "whisper.log",
		Level:         INFO,
		RetentionDays: 7,
	}
}

// core is shared between a logger and the children created by With
type core struct {
	mu    sync.RWMutex
	level Level
	file  *rotatingFile
}

// Logger writes leveled, structured log lines to a daily rotated file
type Logger struct {
	core *core
	zl   zerolog.Logger
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	name := config.FileName
	if name == "" {
		name = DefaultConfig().FileName
	}

	rf := &rotatingFile{
		dir:           config.LogDir,
		prefix:        strings.TrimSuffix(name, filepath.Ext(name)),
		retentionDays: config.RetentionDays,
	}
	if err := rf.rotate(time.Now()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var out io.Writer = rf
	if config.Console {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		out = zerolog.MultiLevelWriter(rf, console)
	}

	return &Logger{
		core: &core{level: config.Level, file: rf},
		zl:   zerolog.New(out).With().Timestamp().Logger(),
	}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{
		core: &core{level: ERROR + 1},
		zl:   zerolog.Nop(),
	}
}

// NewWriter returns a logger that writes JSON lines to w without a file
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		core: &core{level: level},
		zl:   zerolog.New(w).With().Timestamp().Logger(),
	}
}

// With returns a child logger that adds key=value to every line.
// The child shares level and output with its parent.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		core: l.core,
		zl:   l.zl.With().Interface(key, value).Logger(),
	}
}

func (l *Logger) enabled(level Level) bool {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return l.core.level <= level
}

func (l *Logger) log(level Level, format string, v ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.zl.WithLevel(level.zerologLevel()).Msgf(format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, format, v...)
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, format, v...)
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.core.file == nil {
		return nil
	}
	return l.core.file.Close()
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	l.core.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()

	return l.core.level
}

// rotatingFile is an io.Writer that switches to a new file each day
type rotatingFile struct {
	mu            sync.Mutex
	dir           string
	prefix        string
	retentionDays int
	currentDay    string
	file          *os.File
	closed        bool
}

// Write implements io.Writer
func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, os.ErrClosed
	}

	if r.currentDay != time.Now().Format("20060102") || r.file == nil {
		if err := r.rotateLocked(time.Now()); err != nil {
			// ログ自体が書けないので標準エラーへ
			fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
			return 0, err
		}
	}
	return r.file.Write(p)
}

func (r *rotatingFile) rotate(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotateLocked(now)
}

func (r *rotatingFile) rotateLocked(now time.Time) error {
	today := now.Format("20060102")
	if r.currentDay == today && r.file != nil {
		return nil
	}

	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(r.dir, fmt.Sprintf("%s-%s.log", r.prefix, today))
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	r.file = file
	r.currentDay = today

	if r.retentionDays > 0 {
		if err := r.cleanOldLogs(now); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clean old logs: %v\n", err)
		}
	}

	return nil
}

// cleanOldLogs deletes this logger's files older than retentionDays
func (r *rotatingFile) cleanOldLogs(now time.Time) error {
	cutoffDate := now.AddDate(0, 0, -r.retentionDays)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) != ".log" || !strings.HasPrefix(name, r.prefix+"-") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			// 削除できなくても続行
			_ = os.Remove(filepath.Join(r.dir, name))
		}
	}

	return nil
}

// Close closes the current file
func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
