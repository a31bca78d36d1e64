package goengine

type (
	// Logger a structured logger interface
	Logger interface {
		Error(msg string, fields func(LoggerEntry))
		Warn(msg string, fields func(LoggerEntry))
		Info(msg string, fields func(LoggerEntry))
		Debug(msg string, fields func(LoggerEntry))

		// WithFields returns a Logger that adds the provided fields to every entry
		WithFields(fields func(LoggerEntry)) Logger
	}

	// LoggerEntry represents the entry to be logged.
	// The fields func of a Logger call is only invoked when the level is enabled.
	LoggerEntry interface {
		Int(k string, v int)
		Int64(k string, v int64)
		String(k, v string)
		Error(err error)
		Any(k string, v interface{})
	}
)
