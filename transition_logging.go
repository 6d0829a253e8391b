package bitstate

import (
	"context"
	"log/slog"
	"time"
)

// TransitionKind names the outcome of a transition round.
type TransitionKind string

const (
	TransitionCommitted TransitionKind = "committed"
	TransitionRejected  TransitionKind = "rejected"
	TransitionAbandoned TransitionKind = "abandoned"
	TransitionNoop      TransitionKind = "noop"
	TransitionDropped   TransitionKind = "dropped"
	TransitionCoalesced TransitionKind = "coalesced"
)

// TransitionLogEvent describes one transition round or signal delivery.
type TransitionLogEvent struct {
	Kind     TransitionKind
	Serial   uint64
	Recent   int
	Changed  Mask
	Signals  Mask
	Brand    uint8
	Duration time.Duration
	Err      error
}

// TransitionLogger records transition events.
type TransitionLogger interface {
	LogTransition(TransitionLogEvent)
}

// TransitionLoggerFunc adapts a function to TransitionLogger.
type TransitionLoggerFunc func(TransitionLogEvent)

// LogTransition implements TransitionLogger.
func (f TransitionLoggerFunc) LogTransition(event TransitionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopTransitionLogger struct{}

func (noopTransitionLogger) LogTransition(TransitionLogEvent) {}

// WithTransitionLogger attaches a transition logger to a Live register.
func WithTransitionLogger(logger TransitionLogger) Option {
	return func(cfg *liveConfig) {
		if logger == nil {
			cfg.logger = noopTransitionLogger{}
			return
		}
		cfg.logger = logger
	}
}

type slogTransitionLogger struct {
	logger *slog.Logger
}

// NewSlogTransitionLogger writes transition events to logger. Abandoned
// rounds log at error level, rejected and dropped ones at info, everything
// else at debug.
func NewSlogTransitionLogger(logger *slog.Logger) TransitionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogTransitionLogger{logger: logger}
}

func (l slogTransitionLogger) LogTransition(event TransitionLogEvent) {
	level := slog.LevelDebug
	switch event.Kind {
	case TransitionAbandoned:
		level = slog.LevelError
	case TransitionRejected, TransitionDropped:
		level = slog.LevelInfo
	}
	attrs := []slog.Attr{
		slog.String("kind", string(event.Kind)),
		slog.Uint64("serial", event.Serial),
		slog.Int("recent", event.Recent),
		slog.Uint64("changed", uint64(event.Changed)),
		slog.Uint64("signals", uint64(event.Signals)),
		slog.Int("brand", int(event.Brand)),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, "bitstate transition", attrs...)
}
