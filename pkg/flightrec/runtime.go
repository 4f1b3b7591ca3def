package flightrec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/bytestore"
	"github.com/bft-labs/flightrec/pkg/capture"
	"github.com/bft-labs/flightrec/pkg/latch"
	"github.com/bft-labs/flightrec/pkg/lifecycle"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/packer"
	"github.com/bft-labs/flightrec/pkg/pipeline"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/recorder"
	"github.com/bft-labs/flightrec/pkg/spsc"
	"github.com/bft-labs/flightrec/pkg/state"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

// Errors returned by the runtime.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNotReady        = domain.ErrNotReady
	ErrNotArmed        = domain.ErrNotArmed
)

// Runtime runs the capture pipeline: a tick goroutine producing one control
// sample per period, and a slow goroutine recording them, triggering and
// draining windows onto the link.
type Runtime struct {
	config    Config
	opts      options
	lifecycle *lifecycle.Manager
	logger    log.Logger
	emitter   *eventEmitter
	plugins   []Plugin

	queue     *spsc.Queue
	rec       *recorder.Recorder
	worker    *pipeline.Worker
	sched     *txsched.Scheduler
	pdo       *txsched.FrameQueue
	window    *pipeline.WindowSource
	sink      link.Sink
	archive   *bytestore.Service
	stateRepo state.Repository

	setpoint *latch.Latch[Setpoint]

	// Owned by the tick goroutine.
	sample Sample
	pdoBuf []byte
	pdoSeq uint16

	// Guarded by ctl.
	ctl       sync.Mutex
	frame     []byte
	st        state.State
	sessionID uint32
	loaded    bool
	stoppedAt time.Time
	finished  bool

	triggerAfter atomic.Uint32
	triggerLevel atomic.Uint64
	armPeriod    atomic.Uint32
	lastPeriod   atomic.Uint32
	measured     atomic.Uint32

	ticks          atomic.Uint64
	queueDrops     atomic.Uint64
	framesSent     atomic.Uint64
	bytesSent      atomic.Uint64
	linkErrors     atomic.Uint64
	windowsDrained atomic.Uint64
	archiveErrors  atomic.Uint64

	mu   sync.Mutex
	done chan struct{}
}

// New creates a Runtime in StateStopped. Call Start to begin capturing.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitter{handler: o.eventHandler}
	r := &Runtime{
		config:    cfg,
		opts:      o,
		lifecycle: lifecycle.NewManager(o.logger, emitter),
		logger:    o.logger,
		emitter:   emitter,
		plugins:   o.plugins,
		sink:      o.sink,
		archive:   o.archive,
		stateRepo: o.stateRepo,
		setpoint:  latch.New(Setpoint{Current: cfg.Reference}),
		pdoBuf:    make([]byte, pdoFrameSize),
		frame:     make([]byte, cfg.MaxFrameBytes),
		done:      make(chan struct{}),
	}
	r.triggerAfter.Store(cfg.TriggerAfter)
	r.triggerLevel.Store(math.Float64bits(cfg.TriggerLevel))

	var err error
	r.queue, err = spsc.New(make([]byte, cfg.QueueDepth*SampleSize), cfg.QueueDepth, SampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample queue: %w", err)
	}
	r.rec, err = recorder.New(make([]byte, cfg.CaptureBytes),
		recorder.WithCriticalSection(o.section),
		recorder.WithFormatVersion(record.FormatVersion))
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	fields, _ := SampleFields(cfg.Fields)
	profile := pipeline.Profile{
		Type:     cfg.RecordType,
		SourceID: cfg.SourceID,
		Fields:   fields,
		CRC:      cfg.CRC,
	}
	r.worker, err = pipeline.NewWorker(r.queue, r.rec, profile, stampSample,
		pipeline.WithObserver(r.observe),
		pipeline.WithWorkerLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	r.sched = txsched.New(cfg.BudgetStep, cfg.BudgetMax)
	r.pdo, err = txsched.NewFrameQueue(cfg.PDODepth, cfg.MaxFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("pdo queue: %w", err)
	}
	r.window = pipeline.NewWindowSource(r.rec)

	return r, nil
}

// Start arms the first session and starts the tick and slow goroutines.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.lifecycle.SetCancel(cancel)

	if err := r.prepare(runCtx); err != nil {
		cancel()
		_ = r.lifecycle.TransitionTo(StateCrashed, "prepare failed")
		return err
	}

	pluginCfg := PluginConfig{Config: r.config, Controller: r, Logger: r.logger}
	for _, p := range r.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			r.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			_ = r.lifecycle.TransitionTo(StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		r.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	done := make(chan struct{})
	r.done = done
	r.lifecycle.Go(func() { r.runFast(runCtx) })
	r.lifecycle.Go(func() { r.runSlow(runCtx, done) })

	return r.lifecycle.TransitionTo(StateRunning, "workers started")
}

// Stop cancels the goroutines, waits for them and shuts plugins down.
// Returns ErrShutdownTimeout if they did not finish in time.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.lifecycle.Cancel()
	r.mu.Unlock()

	err := r.lifecycle.WaitWithTimeout(lifecycle.ShutdownTimeout)

	shutdownCtx := context.Background()
	for i := len(r.plugins) - 1; i >= 0; i-- {
		p := r.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			r.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		} else {
			r.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = r.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the lifecycle state.
func (r *Runtime) Status() State {
	return r.lifecycle.State()
}

// Done is closed when the slow goroutine exits: after the single window of
// a Once run has drained, on a fatal error, or on Stop.
func (r *Runtime) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// prepare restores the drained-session state and arms the first session.
func (r *Runtime) prepare(ctx context.Context) error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	if r.stateRepo != nil {
		st, err := r.stateRepo.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		r.st = st
	}
	r.sessionID = r.st.NextSessionID()
	r.loaded = false
	r.finished = false
	r.window.Reset()
	return r.armLocked()
}

func (r *Runtime) runFast(ctx context.Context) {
	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runtime) runSlow(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.config.SlowInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			finished, err := r.service(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("slow loop failed", log.Err(err))
				_ = r.lifecycle.TransitionTo(StateCrashed, err.Error())
				r.lifecycle.Cancel()
				return
			}
			if finished {
				r.logger.Info("single window drained, capture finished")
				return
			}
		}
	}
}

// tick runs one control period: advance the plant, hand the sample to the
// slow side, refill the LOG budget and queue a PDO frame when due.
func (r *Runtime) tick() {
	r.sample.step(r.setpoint.Load())
	if !pipeline.FastPublish(r.queue, packer.Image(&r.sample)) {
		r.queueDrops.Add(1)
	}
	r.sched.OnTick()
	if every := r.config.PDOEvery; every > 0 && r.sample.PeriodCount%uint32(every) == 0 {
		r.publishPDO()
	}
	r.measured.Store(math.Float32bits(r.sample.Measured))
	r.ticks.Add(1)
}

func (r *Runtime) publishPDO() {
	n, err := packer.Pack(packer.Image(&r.sample), pdoFields, r.pdoBuf[record.HeaderSize:])
	if err != nil {
		return
	}
	ts := record.Timestamp{PeriodCount: r.sample.PeriodCount, Subtick: r.sample.Subtick}
	h := record.NewHeader(record.TypePDO, r.config.SourceID, n, r.pdoSeq, ts, record.FlagNone)
	r.pdoSeq++
	if err := record.Pack(r.pdoBuf, h); err != nil {
		return
	}
	// A full queue counts the drop itself.
	r.pdo.Push(r.pdoBuf[:record.HeaderSize+n])
}

// service is one slow slot. It reports true once a Once run is complete.
func (r *Runtime) service(ctx context.Context) (bool, error) {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	if r.finished {
		return true, nil
	}

	before := r.worker.Stats().Dropped
	if _, err := r.worker.Step(r.config.QueueDepth); err != nil {
		return false, fmt.Errorf("record samples: %w", err)
	}
	if r.worker.Stats().Dropped > before && r.rec.State() == capture.StateTriggered {
		// What is left of the posttrigger budget cannot hold a record.
		r.rec.Stop()
	}

	if !r.loaded && r.rec.State() == capture.StateStopped {
		if err := r.window.Load(); err != nil {
			return false, err
		}
		r.loaded = true
		r.stoppedAt = time.Now()
		r.logger.Info("window stopped",
			log.Session(r.sessionID),
			log.WindowLen(r.window.Total()))
	}

	r.pump()

	if r.loaded && !r.window.Available() {
		return r.finishWindow(ctx)
	}
	return false, nil
}

// pump moves up to FramesPerSlot frames from the scheduler to the sink.
func (r *Runtime) pump() {
	src := txsched.Sources{PDO: r.pdo, Log: r.window}
	for i := 0; i < r.config.FramesPerSlot; i++ {
		class, n, err := r.sched.Next(src, r.frame)
		if err != nil {
			if !errors.Is(err, txsched.ErrNotReady) {
				r.logger.Error("scheduler rejected frame", log.Budget(r.sched.Budget()), log.Err(err))
			}
			return
		}
		if err := r.sink.WriteFrame(class, r.frame[:n]); err != nil {
			r.linkErrors.Add(1)
			r.logger.Warn("link write failed",
				log.Class(class),
				log.Int("bytes", n),
				log.Err(err))
			r.emitter.linkError(LinkErrorEvent{Class: class, Bytes: n, Error: err})
			continue
		}
		r.framesSent.Add(1)
		r.bytesSent.Add(uint64(n))
	}
}

// finishWindow archives and records a fully sent window, then re-arms.
func (r *Runtime) finishWindow(ctx context.Context) (bool, error) {
	status := r.rec.Status()
	ev := WindowDrainedEvent{
		SessionID:      status.SessionID,
		WindowLen:      status.WindowLen,
		DroppedBytes:   status.DroppedBytes,
		DroppedRecords: status.DroppedRecords,
		Overrun:        status.Overrun,
		Incomplete:     status.Incomplete,
		Duration:       time.Since(r.stoppedAt),
	}

	r.st.RecordDrain(status, time.Now())
	if addr, ok := r.archiveWindow(ctx, status.WindowLen); ok {
		ev.Archived = true
		ev.ArchiveAddr = addr
	}
	if r.stateRepo != nil {
		if err := r.stateRepo.Save(ctx, r.st); err != nil {
			r.logger.Warn("failed to save state", log.Err(err))
		}
	}

	r.windowsDrained.Add(1)
	r.logger.Info("window drained",
		log.Session(status.SessionID),
		log.WindowLen(status.WindowLen),
		log.Uint64("dropped_bytes", status.DroppedBytes),
		log.Uint32("dropped_records", status.DroppedRecords),
		log.Bool("incomplete", status.Incomplete),
		log.Bool("archived", ev.Archived))
	r.emitter.windowDrained(ev)

	r.loaded = false
	r.window.Reset()
	if r.config.Once {
		r.finished = true
		return true, nil
	}
	r.sessionID = r.st.NextSessionID()
	return false, r.armLocked()
}

// archiveWindow copies the stopped window into the archive store, wrapping
// to address 0 when it does not fit after the previous one.
func (r *Runtime) archiveWindow(ctx context.Context, n int) (int64, bool) {
	if r.archive == nil || !r.archive.Enabled() || n == 0 {
		return 0, false
	}
	size := r.archive.Size()
	if int64(n) > size {
		r.logger.Warn("window larger than archive",
			log.WindowLen(n),
			log.Int64("archive_size", size))
		return 0, false
	}
	addr := r.st.ArchiveNext
	if addr+int64(n) > size {
		addr = 0
	}

	var buf bytes.Buffer
	buf.Grow(n)
	if _, err := pipeline.Drain(ctx, r.rec, &buf, r.config.ArchiveChunk); err != nil {
		r.archiveErrors.Add(1)
		r.logger.Warn("failed to read window for archive", log.Err(err))
		return 0, false
	}
	if err := r.archive.Write(ctx, addr, buf.Bytes()); err != nil {
		r.archiveErrors.Add(1)
		r.logger.Warn("archive write failed",
			log.Int64("addr", addr),
			log.Err(err))
		if r.archive.Status().State == bytestore.StateDegraded {
			if rerr := r.archive.Recover(ctx); rerr != nil {
				r.logger.Error("archive recovery failed", log.Err(rerr))
			} else {
				r.logger.Info("archive recovered")
			}
		}
		return 0, false
	}
	r.st.RecordArchive(addr, n, addr+int64(n))
	return addr, true
}

func (r *Runtime) armLocked() error {
	err := r.rec.Arm(r.sessionID, recorder.SessionConfig{
		Pretrigger:  r.config.Pretrigger,
		Posttrigger: r.config.Posttrigger,
	})
	if err != nil {
		return fmt.Errorf("arm session %d: %w", r.sessionID, err)
	}
	r.armPeriod.Store(r.lastPeriod.Load())
	r.logger.Info("session armed", log.Session(r.sessionID))
	return nil
}

// observe runs on every consumed sample before it is recorded, so the
// sample that fires the trigger is the first posttrigger record.
func (r *Runtime) observe(snapshot []byte, ts record.Timestamp) {
	r.lastPeriod.Store(ts.PeriodCount)
	if r.rec.State() != capture.StateArmed {
		return
	}
	if after := r.triggerAfter.Load(); after > 0 && ts.PeriodCount-r.armPeriod.Load() >= after {
		_ = r.triggerLocked(ts, "after")
		return
	}
	level := math.Float64frombits(r.triggerLevel.Load())
	if level > 0 && math.Abs(float64(measuredOf(snapshot))) >= level {
		_ = r.triggerLocked(ts, "level")
	}
}

func (r *Runtime) triggerLocked(ts record.Timestamp, cause string) error {
	if err := r.rec.Trigger(); err != nil {
		return err
	}
	if r.config.Posttrigger >= record.HeaderSize+recorder.MetaPayloadSize {
		if err := r.rec.WriteMeta(r.config.SourceID, ts); err != nil {
			r.logger.Debug("meta record dropped", log.Err(err))
		}
	}
	r.logger.Info("capture triggered",
		log.Session(r.sessionID),
		log.Uint32("period", ts.PeriodCount),
		log.String("cause", cause))
	return nil
}
