// Package flightrec runs the diagnostic capture pipeline as an embeddable
// runtime.
//
// A [Runtime] owns two goroutines. The tick goroutine stands in for the
// control interrupt: once per TickInterval it advances a small current-loop
// plant toward the published setpoint, pushes the resulting [Sample] into a
// lock-free queue, refills the LOG byte budget and, every PDOEvery ticks,
// queues a PDO frame. The slow goroutine records queued samples into the
// capture window, fires the trigger, and once the window stops streams it
// through the transmission scheduler to a [link.Sink], PDO frames first.
//
// # Basic Usage
//
//	rt, err := flightrec.New(flightrec.Config{TriggerAfter: 500},
//	    flightrec.WithSink(sink),
//	    flightrec.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	defer rt.Stop()
//
// # Windows
//
// A drained window is optionally archived to a [bytestore.Service]
// ([WithArchive]) and summarized to a [state.Repository]
// ([WithStateRepository]) before the next session is armed. Session ids
// continue from the saved summary across restarts.
//
// # Control
//
// [Runtime] implements [Controller]: Arm, Trigger, StopCapture,
// SetReference, Tune, SetTriggerPolicy and Snapshot are safe to call from
// any goroutine while running. Plugins receive the controller on
// Initialize.
package flightrec
