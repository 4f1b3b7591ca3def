// Package log provides the logging abstraction used across flightrec.
//
// Components accept a Logger and emit structured fields (session id, window
// length, drop counters, link budget). The capture hot path never logs; only
// the slow domain, the runtime and the link sinks do.
//
// # Usage
//
// Wrap a zerolog logger, optionally pinning fields to every line:
//
//	logger := log.NewZerologAdapterWithLogger(log.ConsoleLogger(os.Stderr)).
//	    With(log.Source(1))
//	logger.Info("window drained", log.Session(7), log.WindowLen(4096))
//
// Or the no-op logger for tests and library defaults:
//
//	logger := log.NewNoopLogger()
//
// Any type with Debug, Info, Warn and Error methods taking a message and
// fields satisfies Logger.
package log
