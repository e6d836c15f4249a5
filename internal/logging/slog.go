package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is swapped in tests to capture console output.
var osStdout io.Writer = os.Stdout

// Options select where and how records are written.
type Options struct {
	// File receives records. Nil means stdout.
	File  io.Writer
	Level string
	// Format is "text" or "json". Anything else is text.
	Format string
	// Provider bridges records to OTel when set.
	Provider *sdklog.LoggerProvider
}

// SlogManager owns the process logger and the outputs behind it.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	runAttrs    RunAttrs
	extra       []slog.Handler
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names in any case, with an optional offset
// such as "info+2". Unknown names are info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SetRunAttrs makes every record carry the attributes returned by f.
// Call it before Setup.
func (m *SlogManager) SetRunAttrs(f RunAttrs) {
	m.runAttrs = f
}

// AddHandler registers an additional output, such as a GELF handler.
// Call it before Setup.
func (m *SlogManager) AddHandler(h slog.Handler) {
	m.extra = append(m.extra, h)
}

// Setup replaces the logger. It may be called again once config is loaded.
func (m *SlogManager) Setup(opts Options) {
	m.logProvider = opts.Provider

	out := opts.File
	if out == nil {
		out = osStdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       parseLevel(opts.Level),
		ReplaceAttr: utcSeconds,
	}

	var primary slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		primary = slog.NewJSONHandler(out, handlerOpts)
	} else {
		primary = slog.NewTextHandler(out, handlerOpts)
	}

	handlers := append([]slog.Handler{primary}, m.extra...)
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler("trafficsim", otelslog.WithLoggerProvider(opts.Provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.runAttrs != nil {
		h = NewRunHandler(h, m.runAttrs)
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", opts.Level, "format", opts.Format)
}

// utcSeconds writes record times as RFC3339 in UTC.
func utcSeconds(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records, if any.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
