// Package logger carries the events reported by the proxy and the loggers
// that render them.
//
// Components never format log lines themselves. They build a LogEvent and
// hand it to a Logger, so the same event can end up in log/slog, the
// standard log package or a go-kit logger.
package logger

import (
	"context"
	"log"
	"log/slog"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Logger interface {
	Report(event LogEvent)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Report(LogEvent) {}

type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func NewSlogLogger(logger *slog.Logger) SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogLogger{
		logger: logger,
		ctx:    context.Background(),
	}
}

func (l *SlogLogger) WithContext(ctx context.Context) SlogLogger {
	return SlogLogger{
		logger: l.logger,
		ctx:    ctx,
	}
}

func (l SlogLogger) Report(event LogEvent) {
	l.logger.LogAttrs(l.ctx, event.LogLevel(), event.Message(), event.LogAttrs()...)
}

type SimpleLogger struct{}

func (l SimpleLogger) Report(event LogEvent) {
	log.Printf("[%s] %s [event=%s]", event.LogLevel(), event.Message(), event.EventName())

	for _, attr := range event.LogAttrs() {
		switch attr.Key {
		case "error":
			log.Printf("  Error: %v", attr.Value.Any())
		case "query":
			log.Printf("  Query: %v", attr.Value.Any())
		}
	}
}

// KitLogger renders events as go-kit key/value records, filtered by the
// go-kit level of the event.
type KitLogger struct {
	logger kitlog.Logger
}

func NewKitLogger(logger kitlog.Logger) KitLogger {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return KitLogger{logger: logger}
}

func (l KitLogger) Report(event LogEvent) {
	attrs := event.LogAttrs()
	keyvals := make([]interface{}, 0, 4+2*len(attrs))
	keyvals = append(keyvals, "msg", event.Message(), "event", event.EventName())
	for _, a := range attrs {
		if a.Key == "event" {
			continue
		}
		keyvals = append(keyvals, a.Key, a.Value.Any())
	}

	var leveled kitlog.Logger
	switch {
	case event.LogLevel() >= slog.LevelError:
		leveled = level.Error(l.logger)
	case event.LogLevel() >= slog.LevelWarn:
		leveled = level.Warn(l.logger)
	case event.LogLevel() >= slog.LevelInfo:
		leveled = level.Info(l.logger)
	default:
		leveled = level.Debug(l.logger)
	}
	_ = leveled.Log(keyvals...)
}
