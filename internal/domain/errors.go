package domain

import "errors"

// Capture and telemetry errors. Public packages re-export the ones they return
// so callers can check them with errors.Is without importing this package.
var (
	// ErrInvalidArg is returned for nil or malformed input. It always points at a caller bug.
	ErrInvalidArg = errors.New("flightrec: invalid argument")

	// ErrNoSpace is returned when a buffer or window cannot hold the requested bytes.
	// Every occurrence inside the capture path is accounted in a drop counter.
	ErrNoSpace = errors.New("flightrec: no space")

	// ErrNotArmed is returned when an operation needs an armed (or triggered) session.
	ErrNotArmed = errors.New("flightrec: session not armed")

	// ErrNotTriggered is returned when an operation needs a triggered session.
	ErrNotTriggered = errors.New("flightrec: session not triggered")

	// ErrNotReady is returned when data or state is not available yet.
	ErrNotReady = errors.New("flightrec: not ready")

	// ErrOverflow is reserved for detected internal inconsistency.
	ErrOverflow = errors.New("flightrec: overflow")
)

// Runtime errors.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("flightrec: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("flightrec: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("flightrec: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("flightrec: invalid configuration")
)
