package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

type LogLevel string

const (
	FatalLevel    = "fatal"
	ErrorLevel    = "error"
	WarningLevel  = "warn"
	DebugLevel    = "debug"
	InfoLevel     = "info"
	TraceLevel    = "trace"
	DisabledLevel = "disabled"
)

var levelmap = map[LogLevel]int{
	TraceLevel:    5,
	DebugLevel:    4,
	InfoLevel:     3,
	WarningLevel:  2,
	ErrorLevel:    1,
	FatalLevel:    0,
	DisabledLevel: -1,
}

// Logger writes leveled log lines.
// Trace, debug and info lines go to the standard writer,
// warnings and errors go to the error writer.
type Logger struct {
	mu     sync.RWMutex
	stdout *log.Logger
	stderr *log.Logger
	level  LogLevel
	exit   func(int)
}

// New creates a logger writing to the given writers at the given level.
func New(stdout, stderr io.Writer, level LogLevel) *Logger {
	if !ValidLogLevel(level) {
		level = InfoLevel
	}
	return &Logger{
		stdout: log.New(stdout, "", 0),
		stderr: log.New(stderr, "", 0),
		level:  level,
		exit:   os.Exit,
	}
}

var defaultLogger = New(os.Stdout, os.Stderr, InfoLevel)

// Default returns the process logger used by the package-level functions.
func Default() *Logger {
	return defaultLogger
}

// Tee additionally writes all output of the logger to w.
func (l *Logger) Tee(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout.SetOutput(io.MultiWriter(l.stdout.Writer(), w))
	l.stderr.SetOutput(io.MultiWriter(l.stderr.Writer(), w))
}

func (l *Logger) SetLevel(loglevel LogLevel) error {
	if !ValidLogLevel(loglevel) {
		return fmt.Errorf("No such log level %s", loglevel)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = loglevel
	return nil
}

func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Enabled(level LogLevel) bool {
	return ShouldLog(level, l.Level())
}

func (l *Logger) output(level LogLevel) *log.Logger {
	if levelmap[level] <= levelmap[WarningLevel] {
		return l.stderr
	}
	return l.stdout
}

func (l *Logger) Printf(level LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.Println(level, fmt.Sprintf(format, args...))
}

func (l *Logger) Println(level LogLevel, args ...any) {
	if !l.Enabled(level) {
		return
	}
	ts := time.Now().Local()
	timeStr := fmt.Sprintf("%s.%03d", ts.Format("2006-01-02 15:04:05"), ts.Nanosecond()/1000000)
	levelStr := fmt.Sprintf("- %5s -", level)
	allArgs := []any{timeStr, levelStr}
	allArgs = append(allArgs, args...)
	l.output(level).Println(allArgs...)
}

func (l *Logger) Trace(args ...any) { l.Println(TraceLevel, args...) }
func (l *Logger) Debug(args ...any) { l.Println(DebugLevel, args...) }
func (l *Logger) Info(args ...any)  { l.Println(InfoLevel, args...) }
func (l *Logger) Warn(args ...any)  { l.Println(WarningLevel, args...) }
func (l *Logger) Error(args ...any) { l.Println(ErrorLevel, args...) }

func (l *Logger) Fatal(args ...any) {
	l.Println(FatalLevel, args...)
	debug.PrintStack()
	l.exit(1)
}

func (l *Logger) Tracef(format string, args ...any) { l.Printf(TraceLevel, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.Printf(DebugLevel, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Printf(InfoLevel, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Printf(WarningLevel, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Printf(ErrorLevel, format, args...) }

func (l *Logger) Fatalf(format string, args ...any) {
	l.Printf(FatalLevel, format, args...)
	debug.PrintStack()
	l.exit(1)
}

// Writer returns a writer that logs every write as one line at the given level.
func (l *Logger) Writer(level LogLevel) io.Writer {
	return writeFunc(func(data []byte) (int, error) {
		l.Printf(level, "%s", data)
		return len(data), nil
	})
}

// DebugError logs an error and every error it wraps.
func (l *Logger) DebugError(err error) {
	indent := 1

	l.Debug(err.Error())

	for {
		if err = errors.Unwrap(err); err == nil {
			break
		}

		l.Debugf("| %d: %s", indent, err.Error())
		indent += 1
	}
}

func SetLevel(loglevel LogLevel) error {
	return defaultLogger.SetLevel(loglevel)
}

func ValidLogLevel(level LogLevel) bool {
	_, ok := levelmap[level]
	return ok
}

func ShouldLog(logLevel, enabled LogLevel) bool {
	if !ValidLogLevel(logLevel) || !ValidLogLevel(enabled) {
		return false
	}
	return levelmap[logLevel] <= levelmap[enabled]
}

func Trace(args ...any) { defaultLogger.Trace(args...) }
func Debug(args ...any) { defaultLogger.Debug(args...) }
func Info(args ...any)  { defaultLogger.Info(args...) }
func Warn(args ...any)  { defaultLogger.Warn(args...) }
func Error(args ...any) { defaultLogger.Error(args...) }
func Fatal(args ...any) { defaultLogger.Fatal(args...) }

func Tracef(format string, args ...any) { defaultLogger.Tracef(format, args...) }
func Debugf(format string, args ...any) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...any) { defaultLogger.Errorf(format, args...) }
func Fatalf(format string, args ...any) { defaultLogger.Fatalf(format, args...) }

func DebugError(err error) {
	defaultLogger.DebugError(err)
}

type writeFunc func([]byte) (int, error)

func (fn writeFunc) Write(data []byte) (int, error) {
	return fn(data)
}

// NewLogWriter returns a writer logging to the default logger.
func NewLogWriter(level LogLevel) io.Writer {
	return defaultLogger.Writer(level)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard, io.Discard, DisabledLevel)
}
