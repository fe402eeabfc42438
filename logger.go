package impulse

import "github.com/akmonengine/impulse/logging"

// Logger is the leveled logger used by the whole pipeline
type Logger = logging.Logger

// NewDefaultLogger writes to stdout and stderr through the std log package
func NewDefaultLogger(prefix string, debug bool) *logging.DefaultLogger {
	return logging.NewDefaultLogger(prefix, debug)
}

// NewNopLogger drops every message
func NewNopLogger() Logger {
	return logging.NewNopLogger()
}
