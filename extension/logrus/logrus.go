package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/hellofresh/goengine-core"
)

// Ensure wrapper implements goengine.Logger
var _ goengine.Logger = &wrapper{}

type (
	wrapper struct {
		logger *logrus.Entry
	}

	entry struct {
		fields logrus.Fields
	}
)

// Wrap wraps a logrus.Logger
func Wrap(logger *logrus.Logger) goengine.Logger {
	return &wrapper{logger: logrus.NewEntry(logger)}
}

// WrapEntry wraps a logrus.Entry
func WrapEntry(e *logrus.Entry) goengine.Logger {
	return &wrapper{logger: e}
}

// StandardLogger return a wrapped version of the logrus.StandardLogger()
func StandardLogger() goengine.Logger {
	return Wrap(logrus.StandardLogger())
}

// Error writes a log with log level error
func (w *wrapper) Error(msg string, fields func(goengine.LoggerEntry)) {
	w.log(logrus.ErrorLevel, msg, fields)
}

// Warn writes a log with log level warning
func (w *wrapper) Warn(msg string, fields func(goengine.LoggerEntry)) {
	w.log(logrus.WarnLevel, msg, fields)
}

// Info writes a log with log level info
func (w *wrapper) Info(msg string, fields func(goengine.LoggerEntry)) {
	w.log(logrus.InfoLevel, msg, fields)
}

// Debug writes a log with log level debug
func (w *wrapper) Debug(msg string, fields func(goengine.LoggerEntry)) {
	w.log(logrus.DebugLevel, msg, fields)
}

// WithFields return a new Logger with the provided fields
func (w *wrapper) WithFields(fields func(goengine.LoggerEntry)) goengine.Logger {
	if fields == nil {
		return w
	}

	return &wrapper{logger: w.logger.WithFields(collectFields(fields))}
}

func (w *wrapper) log(level logrus.Level, msg string, fields func(goengine.LoggerEntry)) {
	if !w.logger.Logger.IsLevelEnabled(level) {
		return
	}

	if fields == nil {
		w.logger.Log(level, msg)
		return
	}

	w.logger.WithFields(collectFields(fields)).Log(level, msg)
}

func collectFields(fields func(goengine.LoggerEntry)) logrus.Fields {
	e := &entry{fields: logrus.Fields{}}
	fields(e)

	return e.fields
}

func (e *entry) Int(k string, v int) {
	e.fields[k] = v
}

func (e *entry) Int64(k string, v int64) {
	e.fields[k] = v
}

func (e *entry) String(k, v string) {
	e.fields[k] = v
}

func (e *entry) Error(err error) {
	e.fields[logrus.ErrorKey] = err
}

func (e *entry) Any(k string, v interface{}) {
	e.fields[k] = v
}
