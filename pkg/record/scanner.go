package record

import "encoding/binary"

// CRCStatus describes the outcome of checking a record's trailing checksum.
type CRCStatus int

const (
	CRCAbsent CRCStatus = iota
	CRCValid
	CRCInvalid
)

// String returns a human-readable representation of the status.
func (s CRCStatus) String() string {
	switch s {
	case CRCAbsent:
		return "none"
	case CRCValid:
		return "ok"
	case CRCInvalid:
		return "bad"
	default:
		return "unknown"
	}
}

// Record is one decoded record. Payload aliases the scanned buffer.
type Record struct {
	Header  Header
	Payload []byte
	CRC     CRCStatus
	Offset  int
}

// Body returns the payload without the trailing checksum, if any.
func (r Record) Body() []byte {
	if r.Header.Flags.Has(FlagHasCRC32) && len(r.Payload) >= CRCSize {
		return r.Payload[:len(r.Payload)-CRCSize]
	}
	return r.Payload
}

// Scanner walks concatenated records in a capture window or link stream.
// There is no outer framing, so it resynchronizes by sliding one byte at a
// time until a valid magic shows up.
type Scanner struct {
	data      []byte
	pos       int
	rec       Record
	skipped   int
	truncated int
	// start of the first header whose record overruns the data, or -1
	partial int
	done    bool
}

// NewScanner returns a Scanner over data.
func NewScanner(data []byte) *Scanner {
	return &Scanner{data: data, partial: -1}
}

// Next advances to the next record. It returns false at the end of the data.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	for {
		rest := len(s.data) - s.pos
		if rest < HeaderSize {
			s.finish(rest)
			return false
		}
		if binary.LittleEndian.Uint16(s.data[s.pos:]) != Magic {
			s.pos++
			s.skipped++
			continue
		}
		h, err := Unpack(s.data[s.pos:])
		if err != nil {
			s.pos++
			s.skipped++
			continue
		}
		if h.Size() > rest {
			// A corrupt length can hide a valid record further on, so keep
			// sliding. The bytes only count as truncated if nothing follows.
			if s.partial < 0 {
				s.partial = s.pos
			}
			s.pos++
			s.skipped++
			continue
		}
		s.partial = -1
		payload := s.data[s.pos+HeaderSize : s.pos+h.Size()]
		s.rec = Record{Header: h, Payload: payload, Offset: s.pos}
		if h.Flags.Has(FlagHasCRC32) {
			if VerifyCRC(payload) {
				s.rec.CRC = CRCValid
			} else {
				s.rec.CRC = CRCInvalid
			}
		}
		s.pos += h.Size()
		return true
	}
}

func (s *Scanner) finish(rest int) {
	s.done = true
	if s.partial < 0 {
		s.truncated = rest
		return
	}
	s.skipped -= s.pos - s.partial
	s.truncated = len(s.data) - s.partial
}

// Record returns the record found by the last call to Next.
func (s *Scanner) Record() Record {
	return s.rec
}

// Skipped returns the number of bytes discarded while resynchronizing.
func (s *Scanner) Skipped() int {
	return s.skipped
}

// Truncated returns the number of trailing bytes that did not form a
// complete record. Valid only after Next returned false.
func (s *Scanner) Truncated() int {
	return s.truncated
}
