package state

import (
	"time"

	"github.com/bft-labs/flightrec/pkg/recorder"
)

// State summarizes the drained capture sessions. It is saved after every
// window that was fully sent, so a restarted recorder continues the session
// numbering and archive position where the previous run left off.
type State struct {
	// LastSessionID is the id of the most recently drained session.
	LastSessionID uint32 `json:"last_session_id"`

	// WindowLen is the length of that session's window in bytes.
	WindowLen int `json:"window_len"`

	DroppedBytes   uint64 `json:"dropped_bytes"`
	DroppedRecords uint32 `json:"dropped_records"`
	Overrun        bool   `json:"overrun"`
	Incomplete     bool   `json:"incomplete"`

	// ArchiveAddr and ArchiveLen locate the window copy in the byte store.
	// ArchiveLen is 0 when the window was not archived.
	ArchiveAddr int64 `json:"archive_addr"`
	ArchiveLen  int   `json:"archive_len"`

	// ArchiveNext is where the next window will be archived.
	ArchiveNext int64 `json:"archive_next"`

	// SessionsDrained counts windows sent since the state was created.
	SessionsDrained uint64 `json:"sessions_drained"`

	LastDrainedAt time.Time `json:"last_drained_at"`
}

// IsEmpty returns true if no session has been drained yet.
func (s State) IsEmpty() bool {
	return s.SessionsDrained == 0
}

// NextSessionID returns the id to arm the next session with.
func (s State) NextSessionID() uint32 {
	if s.IsEmpty() {
		return 1
	}
	return s.LastSessionID + 1
}

// RecordDrain folds a drained window's status into the state.
func (s *State) RecordDrain(st recorder.Status, at time.Time) {
	s.LastSessionID = st.SessionID
	s.WindowLen = st.WindowLen
	s.DroppedBytes = st.DroppedBytes
	s.DroppedRecords = st.DroppedRecords
	s.Overrun = st.Overrun
	s.Incomplete = st.Incomplete
	s.ArchiveLen = 0
	s.SessionsDrained++
	s.LastDrainedAt = at
}

// RecordArchive notes where the last window was archived.
func (s *State) RecordArchive(addr int64, n int, next int64) {
	s.ArchiveAddr = addr
	s.ArchiveLen = n
	s.ArchiveNext = next
}
