// Package recorder is the logging core of the capture pipeline.
//
// A [Recorder] owns one capture session and frames everything written to it
// as records (see package record). Its central guarantee is that a record is
// written whole or not at all: the fit check and the copy happen inside one
// critical section, so a reader of a stopped window never sees a torn record.
//
// # Critical sections
//
// The exclusion primitive is injected with [WithCriticalSection]:
//
//	r, err := recorder.New(buf, recorder.WithCriticalSection(&recorder.MutexSection{}))
//
// [NoopSection] is the default and is only correct when one goroutine drives
// the recorder. [FuncSection] adapts platform enter/exit functions.
//
// # Sequence numbers
//
// WriteRecordAuto assigns a 16-bit wrapping sequence number under the same
// critical section. Dropped records still consume their number, so gaps in
// a window mark exactly where data was lost. Arm and Clear restart at 0.
package recorder
