package graphstate

import (
	"context"
	"log/slog"
	"time"
)

// ResolutionLogEvent describes one Resolve call for logging.
type ResolutionLogEvent struct {
	Operation Operation
	RootType  string
	// Visited counts distinct instances reached, tracked or not.
	Visited  int
	Tracked  int
	States   map[State]int
	Duration time.Duration
	Err      error
}

// ResolutionLogger records resolution events.
type ResolutionLogger interface {
	LogResolution(ResolutionLogEvent)
}

// ResolutionLoggerFunc adapts a function to ResolutionLogger.
type ResolutionLoggerFunc func(ResolutionLogEvent)

// LogResolution implements ResolutionLogger.
func (f ResolutionLoggerFunc) LogResolution(event ResolutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopResolutionLogger struct{}

func (noopResolutionLogger) LogResolution(ResolutionLogEvent) {}

// MultiLogger fans an event out to every non-nil logger.
func MultiLogger(loggers ...ResolutionLogger) ResolutionLogger {
	return ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		for _, logger := range loggers {
			if logger != nil {
				logger.LogResolution(event)
			}
		}
	})
}

// SlogLogger writes resolution events to logger at debug level, or at warn
// level when the resolution failed.
func SlogLogger(logger *slog.Logger) ResolutionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		attrs := []slog.Attr{
			slog.String("operation", event.Operation.String()),
			slog.String("root_type", event.RootType),
			slog.Int("visited", event.Visited),
			slog.Int("tracked", event.Tracked),
			slog.Duration("duration", event.Duration),
		}
		for state, n := range event.States {
			attrs = append(attrs, slog.Int(state.String(), n))
		}
		if event.Err != nil {
			attrs = append(attrs, slog.Any("error", event.Err))
			logger.LogAttrs(context.Background(), slog.LevelWarn, "graph resolution failed", attrs...)
			return
		}
		logger.LogAttrs(context.Background(), slog.LevelDebug, "graph resolved", attrs...)
	})
}
