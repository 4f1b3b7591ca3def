// Package domain holds the error taxonomy shared by the capture pipeline.
//
// The capture packages (record, capture, recorder, spsc, txsched) all report
// failures through the same small set of sentinel errors:
//
//   - [ErrInvalidArg]: malformed input, a caller bug
//   - [ErrNoSpace]: capacity exhausted, expected and recoverable, always counted
//   - [ErrNotArmed], [ErrNotTriggered], [ErrNotReady]: wrong state for the call
//   - [ErrOverflow]: internal inconsistency
//
// Keeping them in one package means errors.Is works across package
// boundaries: a recorder returning capture.ErrNoSpace and a caller checking
// recorder.ErrNoSpace compare the same value.
package domain
