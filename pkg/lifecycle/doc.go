// Package lifecycle runs the flight recorder's start/stop state machine.
//
// The runtime owns one [Manager]. It moves through Stopped, Starting,
// Running, Stopping and back, or to Crashed when a worker fails. The fast
// and slow domain goroutines are registered with [Manager.Go] so
// Stop can wait for both with [Manager.WaitWithTimeout].
//
//	m := lifecycle.NewManager(logger, emitter)
//	if err := m.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
//	    return err
//	}
//	m.Go(fastLoop)
//	m.Go(slowLoop)
//
// Valid transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopping, Crashed
//   - Running -> Stopping, Crashed
//   - Stopping -> Stopped, Crashed
//   - Crashed -> Starting
//
// [Backoff] paces retries with exponential, jittered delays.
package lifecycle
