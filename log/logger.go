// Package log is a thin, leveled logging façade over github.com/op/go-logging,
// used by the builder to report build timings and node counts
// without coupling engine code to a specific logging backend.
package log

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

// Level is the engine's own leveled-logging enum, kept distinct from
// logging.Level so callers never need to import op/go-logging directly.
type Level int

const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var leveledBackend logging.LeveledBackend

// Logger is implemented by every named logger returned from New.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New returns a named logger. Loggers with the same name share the process
// backend and verbosity level installed via SetLevel.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// SetSink redirects all logger output to sink.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveledBackend = logging.AddModuleLevel(formatted)
	leveledBackend.SetLevel(toBackendLevel(Notice), "")
	logging.SetBackend(leveledBackend)
}

// SetLevel sets the minimum level a logger will emit.
func SetLevel(level Level) {
	leveledBackend.SetLevel(toBackendLevel(level), "")
}

func toBackendLevel(level Level) logging.Level {
	switch level {
	case Debug:
		return logging.DEBUG
	case Info:
		return logging.INFO
	case Warning:
		return logging.WARNING
	case Error:
		return logging.ERROR
	default:
		return logging.NOTICE
	}
}

func init() {
	SetSink(os.Stdout)
	SetLevel(Notice)
}
