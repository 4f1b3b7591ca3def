package flightrec

import (
	"fmt"
	"math"

	"github.com/bft-labs/flightrec/pkg/bytestore"
	"github.com/bft-labs/flightrec/pkg/capture"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/pipeline"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/recorder"
)

// Stats is a point-in-time view of the runtime.
type Stats struct {
	State    State                `json:"lifecycle"`
	Recorder recorder.Status      `json:"recorder"`
	Worker   pipeline.WorkerStats `json:"worker"`

	Budget     uint32 `json:"budget"`
	BudgetStep uint32 `json:"budget_step"`
	BudgetMax  uint32 `json:"budget_max"`

	Ticks        uint64 `json:"ticks"`
	QueueDrops   uint64 `json:"queue_drops"`
	PDODrops     uint32 `json:"pdo_drops"`
	PDOHighWater uint32 `json:"pdo_highwater"`

	FramesSent     uint64 `json:"frames_sent"`
	BytesSent      uint64 `json:"bytes_sent"`
	LinkErrors     uint64 `json:"link_errors"`
	WindowsDrained uint64 `json:"windows_drained"`
	ArchiveErrors  uint64 `json:"archive_errors"`

	Archive bytestore.Status `json:"archive"`

	Reference    float32 `json:"reference"`
	Measured     float32 `json:"measured"`
	TriggerAfter uint32  `json:"trigger_after"`
	TriggerLevel float64 `json:"trigger_level"`
}

// Arm restarts capture of the current session. It fails while a stopped
// window is still being sent, and after a Once run has finished.
func (r *Runtime) Arm() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.finished {
		return fmt.Errorf("capture finished: %w", ErrNotReady)
	}
	if r.loaded {
		return fmt.Errorf("window of session %d is draining: %w", r.sessionID, ErrNotReady)
	}
	return r.armLocked()
}

// Trigger fires the trigger now. The session must be armed.
func (r *Runtime) Trigger() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	ts := record.Timestamp{PeriodCount: r.lastPeriod.Load()}
	return r.triggerLocked(ts, "manual")
}

// StopCapture ends the current session early. The window so far is sent
// as usual and flagged incomplete if the posttrigger part was not filled.
func (r *Runtime) StopCapture() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	st := r.rec.State()
	if st != capture.StateArmed && st != capture.StateTriggered {
		return fmt.Errorf("stop in state %s: %w", st, ErrNotArmed)
	}
	r.rec.Stop()
	r.logger.Info("capture stopped", log.Session(r.sessionID))
	return nil
}

// SetReference publishes a new current setpoint to the tick goroutine.
func (r *Runtime) SetReference(amps float32) {
	r.setpoint.Publish(Setpoint{Current: amps})
}

// Tune changes the LOG budget refill. max is raised to step if lower.
func (r *Runtime) Tune(step, max uint32) {
	if max < step {
		max = step
	}
	r.sched.Tune(step, max)
	r.logger.Info("log budget tuned",
		log.Uint32("step", step),
		log.Uint32("max", max),
		log.Budget(r.sched.Budget()))
}

// SetTriggerPolicy replaces the automatic trigger conditions. Zero
// disables either one.
func (r *Runtime) SetTriggerPolicy(after uint32, level float64) {
	if level < 0 {
		level = 0
	}
	r.triggerAfter.Store(after)
	r.triggerLevel.Store(math.Float64bits(level))
	r.logger.Info("trigger policy changed",
		log.Uint32("after", after),
		log.Float64("level", level))
}

// Snapshot returns the current counters.
func (r *Runtime) Snapshot() Stats {
	step, max := r.sched.Limits()
	s := Stats{
		State:          r.lifecycle.State(),
		Recorder:       r.rec.Status(),
		Worker:         r.worker.Stats(),
		Budget:         r.sched.Budget(),
		BudgetStep:     step,
		BudgetMax:      max,
		Ticks:          r.ticks.Load(),
		QueueDrops:     r.queueDrops.Load(),
		PDODrops:       r.pdo.Drops(),
		PDOHighWater:   r.pdo.HighWater(),
		FramesSent:     r.framesSent.Load(),
		BytesSent:      r.bytesSent.Load(),
		LinkErrors:     r.linkErrors.Load(),
		WindowsDrained: r.windowsDrained.Load(),
		ArchiveErrors:  r.archiveErrors.Load(),
		Archive:        r.archive.Status(),
		Reference:      r.setpoint.Load().Current,
		Measured:       math.Float32frombits(r.measured.Load()),
		TriggerAfter:   r.triggerAfter.Load(),
		TriggerLevel:   math.Float64frombits(r.triggerLevel.Load()),
	}
	return s
}
