// Package splog is a Splunk-style structured JSON line sink: one object per
// line with utctime, level, event, call-site file/line, and caller-supplied
// fields. It is the Go home for the external "Logger" collaborator described
// by the launcher spec — the launcher only ever calls Debug/Info/Warn/Error/
// Exception with an event string and an optional field map.
package splog

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimestampFieldName = "utctime"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Fields is the additional, per-call field map (spec: "additional_fields").
type Fields map[string]any

// Logger is the structured sink. The zero value is not usable; construct
// with New.
type Logger struct {
	zl        zerolog.Logger
	system    string
	component string
	fields    Fields
}

// Config controls where and how Logger writes.
type Config struct {
	// Writer receives the JSON lines. Defaults to os.Stdout.
	Writer io.Writer
	// System and Component are attached to every line when non-empty,
	// mirroring Splogger's constructor-bound system/component tags.
	System    string
	Component string
}

// New constructs a Logger.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{zl: zl, system: cfg.System, component: cfg.Component}
}

// With returns a copy of the Logger that always attaches the given fields,
// analogous to Splogger(additional_fields=...).
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{zl: l.zl, system: l.system, component: l.component, fields: merged}
}

// callerInfo walks the stack to the frame that actually called
// Debug/Info/Warn/Error/Exception — the Go equivalent of the original's
// increased_indirection/caller_info frame walking, minus the manual
// indirection counter: runtime.Caller's skip argument does that directly.
func callerInfo(skip int) (file string, line int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", 0
	}
	return filepath.Base(file), line
}

// log emits one JSON line. It builds the event with zerolog.NoLevel and
// writes "level" itself, rather than relying on WithLevel's automatic level
// field, so EXCEPTION (which has no zerolog equivalent) renders the same
// way as the other four levels instead of needing a second, conflicting
// level field.
func (l *Logger) log(levelName string, event string, fields Fields) {
	file, line := callerInfo(3)
	e := l.zl.WithLevel(zerolog.NoLevel).
		Str("level", levelName).
		Str("event", event).
		Str("file", file).
		Int("line", line)
	if l.system != "" {
		e = e.Str("system", l.system)
	}
	if l.component != "" {
		e = e.Str("component", l.component)
	}
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Send()
}

// Debug logs application-debugging detail.
func (l *Logger) Debug(event string, fields Fields) { l.log("DEBUG", event, fields) }

// Info logs semantic, expected events.
func (l *Logger) Info(event string, fields Fields) { l.log("INFO", event, fields) }

// Warn logs recoverable errors or automatic-retry situations.
func (l *Logger) Warn(event string, fields Fields) { l.log("WARN", event, fields) }

// Error logs errors that are reported but not otherwise handled.
func (l *Logger) Error(event string, fields Fields) { l.log("ERROR", event, fields) }

// Exception logs errors that are safely handled by the system itself.
func (l *Logger) Exception(event string, fields Fields) { l.log("EXCEPTION", event, fields) }
