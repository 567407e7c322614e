package logger

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// SpanCore records error entries as OpenTelemetry spans.
type SpanCore struct {
	zapcore.LevelEnabler
	tracer trace.Tracer
	fields []zapcore.Field
}

// NewSpanCore creates a core that turns entries at or above ErrorLevel into spans.
func NewSpanCore(enab zapcore.LevelEnabler) *SpanCore {
	return &SpanCore{
		LevelEnabler: enab,
		tracer:       otel.Tracer("shadowbot/logs"),
	}
}

func (c *SpanCore) With(fields []zapcore.Field) zapcore.Core {
	return &SpanCore{
		LevelEnabler: c.LevelEnabler,
		tracer:       c.tracer,
		fields:       append(c.fields[:len(c.fields):len(c.fields)], fields...),
	}
}

func (c *SpanCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level >= zapcore.ErrorLevel && c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *SpanCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	_, span := c.tracer.Start(context.Background(), "error."+errorCategory(ent))
	defer span.End()

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}

	for _, field := range fields {
		field.AddTo(enc)
	}

	attrs := make([]attribute.KeyValue, 0, len(enc.Fields)+4)
	attrs = append(attrs,
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
		attribute.String("error.caller", ent.Caller.TrimmedPath()),
		attribute.String("logger", ent.LoggerName),
	)

	for key, value := range enc.Fields {
		attrs = append(attrs, attribute.String(key, fmt.Sprint(value)))
	}

	span.SetAttributes(attrs...)

	return nil
}

func (c *SpanCore) Sync() error {
	return nil
}

// errorCategory derives a span suffix from the logger that wrote the entry.
func errorCategory(ent zapcore.Entry) string {
	switch {
	case strings.HasPrefix(ent.LoggerName, "db_"), strings.Contains(ent.Caller.Function, "database"):
		return "database"
	case strings.Contains(ent.LoggerName, "ticket"), strings.Contains(ent.LoggerName, "autoclose"):
		return "ticket"
	case strings.Contains(ent.Caller.Function, "redis"):
		return "redis"
	case strings.Contains(ent.Caller.Function, "internal/bot"):
		return "bot"
	default:
		return "application"
	}
}
