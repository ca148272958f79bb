// Package diag is the diagnostics sink used by the document builder.
//
// Debug messages are passed as thunks and only rendered when the logger has
// debug enabled. Swallowed field failures are written at LevelFatal, a level
// above slog.LevelError rendered as "FATAL".
package diag

import (
	"context"
	"log/slog"
)

// LevelFatal is the slog level for swallowed field failures.
const LevelFatal = slog.Level(12)

// Sink receives builder diagnostics.
type Sink interface {
	// Debug logs the message returned by msg, evaluating it only when
	// debug logging is active.
	Debug(ctx context.Context, msg func() string)

	// Fatal logs a failure that was handled without aborting the caller.
	Fatal(ctx context.Context, msg string, err error, attrs ...slog.Attr)
}

// SlogSink adapts a *slog.Logger to Sink.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger. A nil logger uses slog.Default() at call time.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// Debug implements Sink.
func (s *SlogSink) Debug(ctx context.Context, msg func() string) {
	l := s.log()
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	l.DebugContext(ctx, msg())
}

// Fatal implements Sink.
func (s *SlogSink) Fatal(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.log().LogAttrs(ctx, LevelFatal, msg, attrs...)
}

// ReplaceLevel renders LevelFatal as "FATAL". Install it as the
// ReplaceAttr hook of a slog handler.
func ReplaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelFatal {
		a.Value = slog.StringValue("FATAL")
	}
	return a
}

// Discard drops every diagnostic. Useful when the caller does not care
// about skip decisions.
type Discard struct{}

// Debug implements Sink.
func (Discard) Debug(context.Context, func() string) {}

// Fatal implements Sink.
func (Discard) Fatal(context.Context, string, error, ...slog.Attr) {}

var (
	_ Sink = (*SlogSink)(nil)
	_ Sink = Discard{}
)
