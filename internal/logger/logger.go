package logger

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// Logger writes leveled lines through the standard log package. DEBUG lines
// are only written in verbose mode.
type Logger struct {
	mu      sync.RWMutex
	verbose bool
}

var defaultLogger = &Logger{}

func init() {
	log.SetFlags(0)
}

func SetVerbose(v bool) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.verbose = v
}

func IsVerbose() bool {
	return defaultLogger.isVerbose()
}

// SetOutput redirects every logger line to w.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func (l *Logger) isVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

func formatTimestamp() string {
	return time.Now().Format("20060102-15:04:05")
}

func (l *Logger) log(level LogLevel, msg string) {
	if level == DEBUG && !l.isVerbose() {
		return
	}
	log.Printf("[%s] %s %s", level, formatTimestamp(), msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// LogHTTP records a finished request. Successful requests are debug-level
// noise; anything else is worth an info line.
func LogHTTP(method, path string, status int, elapsed time.Duration, requestID string) {
	msg := fmt.Sprintf("%s %s -> %d (%s) id=%s", method, path, status, elapsed.Round(time.Microsecond), requestID)
	if status < 400 {
		defaultLogger.log(DEBUG, msg)
		return
	}
	defaultLogger.log(INFO, msg)
}
