package rawdata

import (
	"io"
	"log/slog"
	"os"
)

type Logger interface {
	Info(message string, module string)
	Warn(message string, module string)
	Error(string)
}

var logger Logger = NewSlogLogger(os.Stdout, os.Stderr)

func SetLogger(l Logger) {
	if l == nil {
		l = NewSlogLogger(io.Discard, io.Discard)
	}
	logger = l
}

// SlogLogger sends info and warnings through the bracketed text handler
// and errors as JSON.
type SlogLogger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func NewSlogLogger(infoOut, errorOut io.Writer) *SlogLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return &SlogLogger{
		InfoLog:  slog.New(NewHandler(infoOut, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(errorOut, opts)),
	}
}

func (l *SlogLogger) Info(message string, module string) {
	l.InfoLog.Info(message, moduleKey, module)
}

func (l *SlogLogger) Warn(message string, module string) {
	l.InfoLog.Warn(message, moduleKey, module)
}

func (l *SlogLogger) Error(message string) {
	l.ErrorLog.Error(message)
}
