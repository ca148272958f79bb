package diag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level, ReplaceAttr: ReplaceLevel})
	return slog.New(h), &buf
}

func TestSlogSink_Debug_IsLazy(t *testing.T) {
	// Given: a logger at info level
	logger, buf := newBufferLogger(slog.LevelInfo)
	sink := NewSlogSink(logger)

	// When: logging a debug thunk
	called := false
	sink.Debug(context.Background(), func() string {
		called = true
		return "expensive"
	})

	// Then: the thunk is never evaluated
	assert.False(t, called)
	assert.Empty(t, buf.String())
}

func TestSlogSink_Debug_WritesWhenEnabled(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)
	sink := NewSlogSink(logger)

	sink.Debug(context.Background(), func() string { return "skipping field" })

	assert.Contains(t, buf.String(), "skipping field")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestSlogSink_Fatal_RendersFatalLevel(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelError)
	sink := NewSlogSink(logger)

	sink.Fatal(context.Background(), "could not add field", errors.New("boom"),
		slog.String("field_name", "Title"))

	out := buf.String()
	assert.Contains(t, out, "level=FATAL")
	assert.Contains(t, out, "field_name=Title")
	assert.Contains(t, out, "error=boom")
}

func TestDiscard_DoesNotEvaluate(t *testing.T) {
	called := false
	Discard{}.Debug(context.Background(), func() string {
		called = true
		return ""
	})
	Discard{}.Fatal(context.Background(), "x", nil)
	assert.False(t, called)
}
