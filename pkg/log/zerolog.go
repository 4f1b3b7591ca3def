package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleLogger returns a human-readable, timestamped zerolog logger
// writing to w. The CLI logs to stderr through it.
func ConsoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// ZerologAdapter is a Logger backed by zerolog.
type ZerologAdapter struct {
	zl zerolog.Logger
}

// NewZerologAdapterWithLogger wraps zl. Its level and output are kept.
func NewZerologAdapterWithLogger(zl zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{zl: zl}
}

// With returns an adapter that adds fields to every line.
func (z *ZerologAdapter) With(fields ...Field) *ZerologAdapter {
	ctx := z.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, plain(f.Value))
	}
	return &ZerologAdapter{zl: ctx.Logger()}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) { emit(z.zl.Debug(), msg, fields) }
func (z *ZerologAdapter) Info(msg string, fields ...Field)  { emit(z.zl.Info(), msg, fields) }
func (z *ZerologAdapter) Warn(msg string, fields ...Field)  { emit(z.zl.Warn(), msg, fields) }
func (z *ZerologAdapter) Error(msg string, fields ...Field) { emit(z.zl.Error(), msg, fields) }

// Logger returns the wrapped zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.zl
}

// emit is a no-op when the level is disabled; zerolog hands back a nil event.
func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev.Str(f.Key, v)
		case int:
			ev.Int(f.Key, v)
		case int64:
			ev.Int64(f.Key, v)
		case uint64:
			ev.Uint64(f.Key, v)
		case uint32:
			ev.Uint32(f.Key, v)
		case uint16:
			ev.Uint16(f.Key, v)
		case float64:
			ev.Float64(f.Key, v)
		case float32:
			ev.Float32(f.Key, v)
		case bool:
			ev.Bool(f.Key, v)
		case time.Duration:
			ev.Dur(f.Key, v)
		case []byte:
			ev.Hex(f.Key, v)
		case error:
			ev.AnErr(f.Key, v)
		case fmt.Stringer:
			ev.Stringer(f.Key, v)
		default:
			ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

// plain converts values whose JSON form would differ from their log form.
func plain(v any) any {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	return v
}
