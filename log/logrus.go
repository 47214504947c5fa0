package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type LoggerImpl struct {
	mu sync.Mutex
	l  *logrus.Logger
}

var (
	defaultLogger     *LoggerImpl
	defaultLoggerInit sync.Once
)

func New() *LoggerImpl {
	l := &LoggerImpl{
		l: logrus.New(),
	}
	l.SetLevel(string(InfoLevel))
	return l
}

// Default returns the process-wide logger, creating it on first use.
func Default() *LoggerImpl {
	defaultLoggerInit.Do(func() {
		defaultLogger = New()
	})
	return defaultLogger
}

// Discard returns a logger that drops everything.
func Discard() *LoggerImpl {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

func (l *LoggerImpl) decorate(skip int) *logrus.Entry {
	if pc, file, line, ok := runtime.Caller(skip); ok {
		fName := runtime.FuncForPC(pc).Name()
		path := strings.Split(file, string(os.PathSeparator))
		var position string
		if len(path) > 3 {
			position = fmt.Sprintf("%s:%d", strings.Join(path[len(path)-3:], string(os.PathSeparator)), line)
		} else {
			position = fmt.Sprintf("%s:%d", strings.Join(path, string(os.PathSeparator)), line)
		}
		return l.l.WithField("position", position).WithField("func", fName)
	}
	return logrus.NewEntry(l.l)
}

func (l *LoggerImpl) Trace(format string, v ...interface{}) {
	if !l.l.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	l.decorate(2).Tracef(format, v...)
}

func (l *LoggerImpl) Debug(format string, v ...interface{}) {
	if !l.l.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	l.decorate(2).Debugf(format, v...)
}

func (l *LoggerImpl) Info(format string, v ...interface{}) {
	l.decorate(2).Infof(format, v...)
}

func (l *LoggerImpl) Warn(format string, v ...interface{}) {
	l.decorate(2).Warnf(format, v...)
}

func (l *LoggerImpl) Error(format string, v ...interface{}) {
	l.decorate(2).Errorf(format, v...)
}

func (l *LoggerImpl) setLevel(level int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.l.SetLevel(logrus.Level(level))
}

// SetLevel accepts trace, debug, info, warn or error; anything else means info.
func (l *LoggerImpl) SetLevel(level string) {
	switch strings.ToLower(level) {
	case string(TraceLevel):
		l.setLevel(LevelTrace)
	case string(DebugLevel):
		l.setLevel(LevelDebug)
	case string(InfoLevel):
		l.setLevel(LevelInfo)
	case string(WarnLevel):
		l.setLevel(LevelWarn)
	case string(ErrorLevel):
		l.setLevel(LevelError)
	default:
		l.setLevel(LevelInfo)
	}
}

func (l *LoggerImpl) GetLevel() int {
	return int(l.l.GetLevel())
}

func (l *LoggerImpl) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.l.SetOutput(out)
}

func (l *LoggerImpl) GetOutput() io.Writer {
	if l.l != nil && l.l.Out != nil {
		return l.l.Out
	}
	return nil
}

func (l *LoggerImpl) SetFormatter(formatter logrus.Formatter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.l.SetFormatter(formatter)
}
