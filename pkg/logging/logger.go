package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// SlogLogger implements Logger on top of a slog handler. Children created
// with With share the parent's level variable.
type SlogLogger struct {
	l     *slog.Logger
	level *slog.LevelVar
	cur   *levelBox
}

type levelBox struct {
	mu    sync.Mutex
	level Level
}

// New constructs a logger writing to w with the given config.
func New(w io.Writer, cfg Config) *SlogLogger {
	lv := new(slog.LevelVar)
	lv.Set(cfg.Level.slogLevel())

	opts := &slog.HandlerOptions{Level: lv, AddSource: cfg.AddSource}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &SlogLogger{
		l:     slog.New(handler),
		level: lv,
		cur:   &levelBox{level: cfg.Level},
	}
}

// NewJSONLogger creates a JSON logger at the given level
func NewJSONLogger(w io.Writer, level Level) *SlogLogger {
	return New(w, Config{Level: level, Format: "json"})
}

// NewFromEnv builds a stderr logger from LOG_LEVEL and LOG_FORMAT.
func NewFromEnv() *SlogLogger {
	return New(os.Stderr, Config{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

func (s *SlogLogger) Debug(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelDebug, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Info(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelInfo, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Warn(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelWarn, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Error(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelError, msg, toAttrs(fields)...)
}

// With creates a child logger with the given fields pre-set
func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{
		l:     s.l.With(toArgs(fields)...),
		level: s.level,
		cur:   s.cur,
	}
}

// SetLevel sets the minimum log level
func (s *SlogLogger) SetLevel(level Level) {
	s.cur.mu.Lock()
	defer s.cur.mu.Unlock()
	s.cur.level = level
	s.level.Set(level.slogLevel())
}

// GetLevel returns the current log level
func (s *SlogLogger) GetLevel() Level {
	s.cur.mu.Lock()
	defer s.cur.mu.Unlock()
	return s.cur.level
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// StartTimer begins timing an operation
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{
		logger: OrNop(logger),
		msg:    msg,
		start:  time.Now(),
		fields: fields,
	}
}

// End logs the operation with its duration
func (t *TimedOperation) End(extra ...Field) time.Duration {
	elapsed := time.Since(t.start)
	fields := append(append(t.fields, extra...), Latency(elapsed))
	t.logger.Info(t.msg, fields...)
	return elapsed
}

// EndError logs the operation as an error with its duration
func (t *TimedOperation) EndError(err error) time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Error(t.msg, append(t.fields, Latency(elapsed), Error(err))...)
	return elapsed
}
