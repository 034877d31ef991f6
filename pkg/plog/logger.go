// Package plog defines the logging seam used across the kernel, the
// driver and the handshake protocol. It mirrors the teacher codebase's
// Logger interface shape so callers can plug in their own
// implementation, but ships a default backed by logrus instead of the
// bare standard library logger.
package plog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface every component in this module
// accepts. Hosts may supply their own implementation; Default wraps
// logrus.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})

	// ToggleDebug turns debug-level logging on or off and returns the
	// new state.
	ToggleDebug(value bool) bool
}

// logrusLogger is the logrus-backed Logger returned by NewDefault. A
// driver built without WithLogger uses NewNoop, not this.
type logrusLogger struct {
	entry *logrus.Logger
}

// NewDefault builds the default logrus-backed Logger, writing to
// stderr with debug logging disabled.
func NewDefault() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *logrusLogger) Infof(format string, v ...interface{})   { l.entry.Infof(format, v...) }
func (l *logrusLogger) Warn(v ...interface{})                   { l.entry.Warn(v...) }
func (l *logrusLogger) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *logrusLogger) Error(v ...interface{})                  { l.entry.Error(v...) }
func (l *logrusLogger) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *logrusLogger) Debug(v ...interface{})                  { l.entry.Debug(v...) }
func (l *logrusLogger) Debugf(format string, v ...interface{})  { l.entry.Debugf(format, v...) }
func (l *logrusLogger) Fatal(v ...interface{})                  { l.entry.Fatal(v...) }
func (l *logrusLogger) Fatalf(format string, v ...interface{})  { l.entry.Fatalf(format, v...) }
func (l *logrusLogger) Panic(v ...interface{})                  { l.entry.Panic(v...) }
func (l *logrusLogger) Panicf(format string, v ...interface{})  { l.entry.Panicf(format, v...) }

func (l *logrusLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return value
}

// noop discards everything; useful in tests that don't care about log
// output and don't want the default logger's os.Stderr writes.
type noop struct{}

// NewNoop returns a Logger that discards all output.
func NewNoop() Logger { return noop{} }

func (noop) Info(v ...interface{})                  {}
func (noop) Infof(format string, v ...interface{})  {}
func (noop) Warn(v ...interface{})                  {}
func (noop) Warnf(format string, v ...interface{})  {}
func (noop) Error(v ...interface{})                 {}
func (noop) Errorf(format string, v ...interface{}) {}
func (noop) Debug(v ...interface{})                 {}
func (noop) Debugf(format string, v ...interface{}) {}
func (noop) Fatal(v ...interface{})                 {}
func (noop) Fatalf(format string, v ...interface{}) {}
func (noop) Panic(v ...interface{})                 {}
func (noop) Panicf(format string, v ...interface{}) {}
func (noop) ToggleDebug(value bool) bool            { return value }
