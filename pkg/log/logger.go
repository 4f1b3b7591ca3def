package log

import (
	"fmt"
	"time"
)

// Logger is what flightrec components log through. Each call is one line
// at the given level carrying fields.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair on a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Uint32(key string, value uint32) Field { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err puts err under "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Stringer defers formatting until the line is actually written.
func Stringer(key string, v fmt.Stringer) Field {
	return Field{Key: key, Value: v}
}

// Hex renders b as lowercase hex. Used for header dumps.
func Hex(key string, b []byte) Field {
	return Field{Key: key, Value: b}
}

// Recorder fields. The keys match the JSON names in the status file so a
// log line can be joined against status.json.

// Session is the capture session id.
func Session(id uint32) Field { return Field{Key: "session", Value: id} }

// WindowLen is a capture window length in bytes.
func WindowLen(n int) Field { return Field{Key: "window_len", Value: n} }

// Budget is the LOG byte budget left for the current tick.
func Budget(n uint32) Field { return Field{Key: "budget", Value: n} }

// Class is a scheduler frame class.
func Class(c fmt.Stringer) Field { return Field{Key: "class", Value: c} }

// Source is the record source id.
func Source(id uint16) Field { return Field{Key: "source_id", Value: id} }

// NoopLogger drops everything. Library components fall back to it when
// built without a logger.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
