package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/packer"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/recorder"
	"github.com/bft-labs/flightrec/pkg/spsc"
)

// Profile says how snapshots become records.
type Profile struct {
	Type     record.Type
	SourceID uint16
	// Fields selects what to pack. With no fields the raw snapshot image
	// is recorded as is.
	Fields []packer.Field
	// CRC appends a CRC-32 to every payload and sets FlagHasCRC32.
	CRC bool
}

// PayloadSize returns the payload length produced for snapshots of
// itemSize bytes.
func (p Profile) PayloadSize(itemSize int) int {
	n := itemSize
	if len(p.Fields) > 0 {
		n = packer.Size(p.Fields)
	}
	if p.CRC {
		n += record.CRCSize
	}
	return n
}

// StampFunc extracts the timestamp carried inside a snapshot.
type StampFunc func(snapshot []byte) record.Timestamp

// ObserveFunc sees each consumed snapshot before it is recorded.
type ObserveFunc func(snapshot []byte, ts record.Timestamp)

// WorkerStats counts what a Worker has done.
type WorkerStats struct {
	Consumed uint64 `json:"consumed"`
	Recorded uint64 `json:"recorded"`
	Dropped  uint64 `json:"dropped"`
	Skipped  uint64 `json:"skipped"`
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithObserver registers fn to run on every consumed snapshot.
func WithObserver(fn ObserveFunc) WorkerOption {
	return func(w *Worker) {
		w.observe = fn
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger log.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// Worker is the slow-domain consumer: it drains the snapshot queue, packs
// each snapshot per its Profile and writes it to the recorder.
type Worker struct {
	q       *spsc.Queue
	rec     *recorder.Recorder
	profile Profile
	stamp   StampFunc
	observe ObserveFunc
	logger  log.Logger

	slot    []byte
	payload []byte

	consumed atomic.Uint64
	recorded atomic.Uint64
	dropped  atomic.Uint64
	skipped  atomic.Uint64
}

// NewWorker builds a worker for queue q feeding rec.
func NewWorker(q *spsc.Queue, rec *recorder.Recorder, profile Profile, stamp StampFunc, opts ...WorkerOption) (*Worker, error) {
	if q == nil || rec == nil || stamp == nil {
		return nil, fmt.Errorf("worker needs a queue, recorder and stamp: %w", domain.ErrInvalidArg)
	}
	size := profile.PayloadSize(q.ItemSize())
	if size > record.MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds %d: %w", size, record.MaxPayload, domain.ErrInvalidArg)
	}
	if len(profile.Fields) > 0 {
		if _, err := packer.Pack(make([]byte, q.ItemSize()), profile.Fields, make([]byte, size)); err != nil {
			return nil, fmt.Errorf("profile does not fit snapshot: %w", err)
		}
	}

	w := &Worker{
		q:       q,
		rec:     rec,
		profile: profile,
		stamp:   stamp,
		logger:  log.NewNoopLogger(),
		slot:    make([]byte, q.ItemSize()),
		payload: make([]byte, size),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Step consumes up to max snapshots and returns how many it took. Records
// that do not fit the capture window, or arrive while nothing is armed, are
// counted and skipped.
func (w *Worker) Step(max int) (int, error) {
	n := 0
	for n < max && SlowConsume(w.q, w.slot) {
		n++
		w.consumed.Add(1)

		ts := w.stamp(w.slot)
		if w.observe != nil {
			w.observe(w.slot, ts)
		}

		if err := w.record(ts); err != nil {
			switch {
			case errors.Is(err, domain.ErrNoSpace):
				w.dropped.Add(1)
			case errors.Is(err, domain.ErrNotArmed):
				w.skipped.Add(1)
			default:
				return n, err
			}
			continue
		}
		w.recorded.Add(1)
	}
	return n, nil
}

func (w *Worker) record(ts record.Timestamp) error {
	var n int
	if len(w.profile.Fields) > 0 {
		var err error
		if n, err = SlowPack(w.slot, w.profile.Fields, w.payload); err != nil {
			return fmt.Errorf("pack snapshot: %w", err)
		}
	} else {
		n = copy(w.payload, w.slot)
	}

	flags := record.FlagNone
	if w.profile.CRC {
		var err error
		if n, err = record.AppendCRC(w.payload, n); err != nil {
			return fmt.Errorf("append crc: %w", err)
		}
		flags |= record.FlagHasCRC32
	}

	return w.rec.WriteRecordAuto(w.profile.Type, w.profile.SourceID, w.payload[:n], ts, flags)
}

// Stats returns the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Consumed: w.consumed.Load(),
		Recorded: w.recorded.Load(),
		Dropped:  w.dropped.Load(),
		Skipped:  w.skipped.Load(),
	}
}
