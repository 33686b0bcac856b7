// Package logging provides structured, leveled, trace-ID-aware logging used
// throughout the storage and consolidation core.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level represents a log severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel parses a level name, defaulting to INFO on an unknown value.
func ParseLevel(name string) Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger is the structured logging interface components depend on.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	WithComponent(component string) Logger
	WithTraceID(traceID string) Logger
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// structuredLogger is the default Logger implementation, writing either JSON
// or human-readable lines to stdout depending on configuration.
type structuredLogger struct {
	level     Level
	component string
	traceID   string
	useJSON   bool
}

// New creates a Logger at the given level. useJSON selects JSON line output
// (the default in production) versus a human-readable single-line format.
func New(level Level, useJSON bool) Logger {
	return &structuredLogger{level: level, useJSON: useJSON}
}

func (l *structuredLogger) WithComponent(component string) Logger {
	cp := *l
	cp.component = component
	return &cp
}

func (l *structuredLogger) WithTraceID(traceID string) Logger {
	cp := *l
	cp.traceID = traceID
	return &cp
}

func (l *structuredLogger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *structuredLogger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *structuredLogger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *structuredLogger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *structuredLogger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Component: l.component,
		TraceID:   l.traceID,
		Message:   msg,
	}
	if len(fields) > 0 {
		e.Fields = make(map[string]interface{}, len(fields)/2+1)
		for i := 0; i+1 < len(fields); i += 2 {
			key := fmt.Sprintf("%v", fields[i])
			e.Fields[key] = fields[i+1]
		}
	}
	if l.useJSON {
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: marshal failed: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	l.printText(e)
}

func (l *structuredLogger) printText(e entry) {
	parts := []string{e.Timestamp, "[" + e.Level + "]"}
	if e.Component != "" {
		parts = append(parts, "component="+e.Component)
	}
	if e.TraceID != "" {
		parts = append(parts, "trace="+e.TraceID)
	}
	parts = append(parts, e.Message)
	for k, v := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	fmt.Println(strings.Join(parts, " "))
}

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// WithTraceID stores a trace ID in ctx, generating one if traceID is empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID stored by WithTraceID, if any.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns logger scoped to whatever trace ID is on ctx.
func FromContext(ctx context.Context, logger Logger) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return logger.WithTraceID(traceID)
	}
	return logger
}

// Noop returns a Logger that discards everything, used in tests.
func Noop() Logger { return &noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})  {}
func (noopLogger) Info(string, ...interface{})   {}
func (noopLogger) Warn(string, ...interface{})   {}
func (noopLogger) Error(string, ...interface{})  {}
func (n noopLogger) WithComponent(string) Logger { return n }
func (n noopLogger) WithTraceID(string) Logger   { return n }
