package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHandler_AttrsAreReadPerRecord(t *testing.T) {
	var buf bytes.Buffer
	tick := uint64(0)
	h := NewRunHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		tick++
		return []slog.Attr{slog.Uint64("tick", tick)}
	})
	logger := slog.New(h)

	logger.Info("one")
	logger.Info("two")

	assert.Contains(t, buf.String(), "msg=one tick=1")
	assert.Contains(t, buf.String(), "msg=two tick=2")
}

func TestRunHandler_RecordKeyWins(t *testing.T) {
	var buf bytes.Buffer
	h := NewRunHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("run", "r1"), slog.Uint64("tick", 3)}
	})

	slog.New(h).Info("moved", "tick", 9)

	out := buf.String()
	assert.Contains(t, out, "tick=9")
	assert.Equal(t, 1, strings.Count(out, "tick="))
	assert.Contains(t, out, "run=r1")
}

func TestRunHandler_WithAttrsKeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewRunHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("run", "abc")}
	})

	slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "sim")})).Info("hi")
	assert.Contains(t, buf.String(), "component=sim")
	assert.Contains(t, buf.String(), "run=abc")

	assert.Equal(t, h, h.WithGroup(""))
}

func TestRunHandler_NilAttrs(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewRunHandler(slog.NewTextHandler(&buf, nil), nil)).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	spy := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(&errorHandler{}, spy)

	r := slog.NewRecord(timeZero, slog.LevelInfo, "should reach spy", 0)
	err := multi.Handle(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler error")
	assert.Contains(t, buf.String(), "should reach spy")
}

var timeZero time.Time

// errorHandler fails every record.
type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(context.Context, slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func TestMultiHandler_FansOutAndSkipsNil(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMultiHandler(nil, slog.NewTextHandler(&a, nil), nil, slog.NewTextHandler(&b, nil))
	require.Len(t, multi.handlers, 2)

	slog.New(multi).Info("fanned out")
	assert.Contains(t, a.String(), "fanned out")
	assert.Contains(t, b.String(), "fanned out")
}

func TestMultiHandler_Enabled(t *testing.T) {
	ctx := context.Background()
	info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelInfo))
	assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
}

func TestMultiHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	assert.Same(t, multi, multi.WithGroup(""))

	h := multi.WithAttrs([]slog.Attr{slog.String("component", "sim")}).WithGroup("vehicle")
	slog.New(h).Info("moved", "id", 4)
	assert.Contains(t, buf.String(), "component=sim")
	assert.Contains(t, buf.String(), "vehicle.id=4")
}
