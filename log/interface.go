package log

import (
	"io"
)

const (
	LevelPanic = iota
	LevelFatal
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

type level string

const (
	TraceLevel level = "trace"
	DebugLevel level = "debug"
	InfoLevel  level = "info"
	WarnLevel  level = "warn"
	ErrorLevel level = "error"
)

// Logger is the printf-style logging surface used by channels, alt and the
// altbench command.
type Logger interface {
	Trace(format string, v ...interface{})

	Debug(format string, v ...interface{})

	Info(format string, v ...interface{})

	Warn(format string, v ...interface{})

	Error(format string, v ...interface{})

	SetLevel(level string)

	GetLevel() int

	SetOutput(out io.Writer)

	GetOutput() io.Writer
}
