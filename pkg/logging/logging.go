package logging

import (
	"os"
	"strings"

	"github.com/go-logr/logr"
)

const (
	LEVEL_INFO  = 0
	LEVEL_DEBUG = 1
	LEVEL_TRACE = 2
)

// INFO, DEBUG, and TRACE are the logr verbosity levels every package in this module logs
// against via logger.V(level).Info(...).
const (
	INFO  = LEVEL_INFO
	DEBUG = LEVEL_DEBUG
	TRACE = LEVEL_TRACE
)

// NewLogger creates a new Logger instance with the given configuration
func NewLogger(log logr.Logger) *Logger {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Logger{log: log}
}

// DefaultLogger returns a Logger that discards all output
func DefaultLogger() *Logger {
	//return &Logger{log: NewSimpleLogger(os.Stdout, LEVEL_TRACE, true)}
	return &Logger{log: logr.Discard()}
}

var defaultLogger = logr.Discard()

// InitLogger configures the package-level default logger used by CLI tools that don't build
// their own logr.Logger. level selects "trace", "debug", or anything else for info-level
// output; nil leaves logging discarded.
func InitLogger(level *string) {
	if level == nil {
		defaultLogger = logr.Discard()
		return
	}
	verbosity := LEVEL_INFO
	switch strings.ToLower(*level) {
	case "trace":
		verbosity = LEVEL_TRACE
	case "debug":
		verbosity = LEVEL_DEBUG
	}
	defaultLogger = NewSimpleLogger(os.Stdout, verbosity, true)
}

// Default returns the package-level default logger configured by InitLogger.
func Default() logr.Logger {
	return defaultLogger
}

// Logger is a struct that wraps the logr.Logger interface.
type Logger struct {
	log logr.Logger
}

// Log methods (minimizing footprint in the rest of the library)
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.V(LEVEL_DEBUG).Info(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l *Logger) Trace(msg string, keysAndValues ...interface{}) {
	l.log.V(LEVEL_TRACE).Info(msg, keysAndValues...)
}

func (l *Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(err, msg, keysAndValues...)
}
