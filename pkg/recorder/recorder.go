package recorder

import (
	"encoding/binary"
	"fmt"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/capture"
	"github.com/bft-labs/flightrec/pkg/record"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrNoSpace    = domain.ErrNoSpace
	ErrNotArmed   = domain.ErrNotArmed
	ErrNotReady   = domain.ErrNotReady
)

// MetaPayloadSize is the payload size of the record written by WriteMeta.
const MetaPayloadSize = 8

// SessionConfig sizes the capture window of a session.
type SessionConfig struct {
	Pretrigger  int `json:"pretrigger_bytes" toml:"pretrigger_bytes"`
	Posttrigger int `json:"posttrigger_bytes" toml:"posttrigger_bytes"`
}

// Status extends the capture status with recorder counters.
type Status struct {
	capture.Status
	DroppedRecords uint32 `json:"dropped_records"`
	FormatVersion  uint32 `json:"format_version"`
	NextSeq        uint16 `json:"next_seq"`
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithCriticalSection sets the exclusion used around every state access.
// The default is NoopSection.
func WithCriticalSection(cs CriticalSection) Option {
	return func(r *Recorder) {
		if cs != nil {
			r.cs = cs
		}
	}
}

// WithFormatVersion overrides the format version reported in status and
// META records.
func WithFormatVersion(v uint32) Option {
	return func(r *Recorder) {
		r.formatVersion = v
	}
}

// Recorder frames records into one capture session. A record is either
// written whole or not at all.
type Recorder struct {
	session       *capture.Session
	cs            CriticalSection
	formatVersion uint32

	seq            uint16
	droppedRecords uint32
}

// New creates a recorder over storage. The capture ring capacity is
// len(storage).
func New(storage []byte, opts ...Option) (*Recorder, error) {
	session, err := capture.New(storage)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		session:       session,
		cs:            NoopSection{},
		formatVersion: record.FormatVersion,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Capacity returns the capture ring size in bytes.
func (r *Recorder) Capacity() int {
	return r.session.Capacity()
}

// Arm starts a new session and resets the sequence and drop counters.
func (r *Recorder) Arm(sessionID uint32, cfg SessionConfig) error {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)

	if err := r.session.Arm(sessionID, cfg.Pretrigger, cfg.Posttrigger); err != nil {
		return err
	}
	r.seq = 0
	r.droppedRecords = 0
	return nil
}

// Trigger closes the pretrigger part of the window.
func (r *Recorder) Trigger() error {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	return r.session.Trigger()
}

// Stop ends the session.
func (r *Recorder) Stop() {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	r.session.Stop()
}

// Clear returns the session to idle and resets the sequence and drop counters.
func (r *Recorder) Clear() {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	r.seq = 0
	r.droppedRecords = 0
	r.session.Clear()
}

// WriteRecord writes the header followed by payload, which must be exactly
// h.PayloadLen bytes. If the whole record does not fit the writable capacity
// of the current state nothing is written, the drop is counted, the session
// is flagged overrun and incomplete, and ErrNoSpace is returned.
func (r *Recorder) WriteRecord(h record.Header, payload []byte) error {
	if len(payload) != int(h.PayloadLen) {
		return fmt.Errorf("payload %d bytes, header says %d: %w", len(payload), h.PayloadLen, ErrInvalidArg)
	}
	var hdr [record.HeaderSize]byte
	if err := record.Pack(hdr[:], h); err != nil {
		return err
	}

	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	return r.writeLocked(hdr[:], payload)
}

func (r *Recorder) writeLocked(hdr, body []byte) error {
	state := r.session.State()
	if state != capture.StateArmed && state != capture.StateTriggered {
		return fmt.Errorf("write in state %s: %w", state, ErrNotArmed)
	}

	total := len(hdr) + len(body)
	if total > r.session.Capacity() || total > r.session.Writable() {
		r.droppedRecords++
		r.session.MarkOverrun()
		return fmt.Errorf("record of %d bytes, %d writable: %w", total, r.session.Writable(), ErrNoSpace)
	}

	if n := r.session.Write(hdr); n != len(hdr) {
		r.droppedRecords++
		r.session.MarkOverrun()
		return fmt.Errorf("short header write %d/%d: %w", n, len(hdr), ErrNoSpace)
	}
	if len(body) > 0 {
		if n := r.session.Write(body); n != len(body) {
			r.droppedRecords++
			r.session.MarkOverrun()
			return fmt.Errorf("short payload write %d/%d: %w", n, len(body), ErrNoSpace)
		}
	}
	return nil
}

// WriteRecordAuto assigns the next sequence number and writes a record built
// from the arguments. Sequence assignment and the write share one critical
// section, so written records appear in sequence order. The sequence number
// is consumed even when the write is dropped, so readers see gaps exactly
// where records were lost.
func (r *Recorder) WriteRecordAuto(typ record.Type, sourceID uint16, payload []byte, ts record.Timestamp, flags record.Flags) error {
	if len(payload) > record.MaxPayload {
		return fmt.Errorf("payload %d bytes exceeds %d: %w", len(payload), record.MaxPayload, ErrInvalidArg)
	}
	var hdr [record.HeaderSize]byte

	tok := r.cs.Enter()
	defer r.cs.Exit(tok)

	seq := r.seq
	r.seq++
	h := record.NewHeader(typ, sourceID, len(payload), seq, ts, flags)
	if err := record.Pack(hdr[:], h); err != nil {
		return err
	}
	return r.writeLocked(hdr[:], payload)
}

// WriteMeta writes a META record carrying the format version and the
// current session id, so a decoder can identify the window it is reading.
func (r *Recorder) WriteMeta(sourceID uint16, ts record.Timestamp) error {
	var payload [MetaPayloadSize]byte
	binary.LittleEndian.PutUint32(payload[0:], r.formatVersion)

	tok := r.cs.Enter()
	binary.LittleEndian.PutUint32(payload[4:], r.session.Status().SessionID)
	r.cs.Exit(tok)

	return r.WriteRecordAuto(record.TypeMeta, sourceID, payload[:], ts, record.FlagNone)
}

// ReadChunk copies stopped-window bytes starting at offset into dst.
func (r *Recorder) ReadChunk(offset int, dst []byte) (int, error) {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	return r.session.Read(offset, dst)
}

// Status returns a consistent snapshot of the session and recorder counters.
func (r *Recorder) Status() Status {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	return Status{
		Status:         r.session.Status(),
		DroppedRecords: r.droppedRecords,
		FormatVersion:  r.formatVersion,
		NextSeq:        r.seq,
	}
}

// State returns the capture state.
func (r *Recorder) State() capture.State {
	tok := r.cs.Enter()
	defer r.cs.Exit(tok)
	return r.session.State()
}
