package record

import (
	"encoding/binary"
	"fmt"

	"github.com/bft-labs/flightrec/internal/domain"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrNoSpace    = domain.ErrNoSpace
)

// Magic is the fixed sentinel at the start of every record header.
const Magic uint16 = 0xA55A

// HeaderSize is the on-wire size of a record header in bytes.
const HeaderSize = 16

// MaxPayload is the largest payload a header can describe.
const MaxPayload = 0xFFFF

// Header field offsets.
const (
	offMagic       = 0
	offType        = 2
	offFlags       = 3
	offSourceID    = 4
	offPayloadLen  = 6
	offSeq         = 8
	offPeriodCount = 10
	offSubtick     = 14
)

// Type identifies the kind of payload a record carries.
type Type uint8

const (
	TypeNone     Type = 0
	TypePDO      Type = 1
	TypeCtrl     Type = 2
	TypeADCRaw   Type = 3
	TypeSlowMeas Type = 4
	TypeMeta     Type = 5
)

// String returns a human-readable representation of the type.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypePDO:
		return "PDO"
	case TypeCtrl:
		return "CTRL"
	case TypeADCRaw:
		return "ADC_RAW"
	case TypeSlowMeas:
		return "SLOW_MEAS"
	case TypeMeta:
		return "META"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType maps a type name (as printed by String) back to its value.
func ParseType(s string) (Type, error) {
	for t := TypeNone; t <= TypeMeta; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("unknown record type %q: %w", s, ErrInvalidArg)
}

// Flags is the record flag bitmask.
//
//	bit 0  HAS_CRC32  payload ends with a 4-byte LE CRC-32 of the bytes before it
type Flags uint8

const (
	FlagNone     Flags = 0
	FlagHasCRC32 Flags = 1 << 0
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Timestamp ties a record to the PWM time base.
type Timestamp struct {
	// PeriodCount is the monotonic PWM period index.
	PeriodCount uint32

	// Subtick is the offset within the period.
	Subtick uint16

	// DomainID tags the clock domain. It is not carried in the header.
	DomainID uint16
}

// Header is the fixed 16-byte record header.
type Header struct {
	Magic       uint16
	Type        Type
	Flags       Flags
	SourceID    uint16
	PayloadLen  uint16
	Seq         uint16
	PeriodCount uint32
	Subtick     uint16
}

// NewHeader builds a header with the magic set and the timestamp applied.
func NewHeader(typ Type, sourceID uint16, payloadLen int, seq uint16, ts Timestamp, flags Flags) Header {
	return Header{
		Magic:       Magic,
		Type:        typ,
		Flags:       flags,
		SourceID:    sourceID,
		PayloadLen:  uint16(payloadLen),
		Seq:         seq,
		PeriodCount: ts.PeriodCount,
		Subtick:     ts.Subtick,
	}
}

// Size returns the total on-wire size of the record described by h.
func (h Header) Size() int {
	return HeaderSize + int(h.PayloadLen)
}

// Pack serializes h into dst. The magic written is always Magic,
// whatever h.Magic holds.
func Pack(dst []byte, h Header) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("pack header into %d bytes: %w", len(dst), ErrNoSpace)
	}
	binary.LittleEndian.PutUint16(dst[offMagic:], Magic)
	dst[offType] = byte(h.Type)
	dst[offFlags] = byte(h.Flags)
	binary.LittleEndian.PutUint16(dst[offSourceID:], h.SourceID)
	binary.LittleEndian.PutUint16(dst[offPayloadLen:], h.PayloadLen)
	binary.LittleEndian.PutUint16(dst[offSeq:], h.Seq)
	binary.LittleEndian.PutUint32(dst[offPeriodCount:], h.PeriodCount)
	binary.LittleEndian.PutUint16(dst[offSubtick:], h.Subtick)
	return nil
}

// Unpack parses a header from src. It fails on short input and on a magic
// mismatch; other fields are taken as they are.
func Unpack(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("unpack header from %d bytes: %w", len(src), ErrNoSpace)
	}
	magic := binary.LittleEndian.Uint16(src[offMagic:])
	if magic != Magic {
		return Header{}, fmt.Errorf("bad magic 0x%04X: %w", magic, ErrInvalidArg)
	}
	return Header{
		Magic:       magic,
		Type:        Type(src[offType]),
		Flags:       Flags(src[offFlags]),
		SourceID:    binary.LittleEndian.Uint16(src[offSourceID:]),
		PayloadLen:  binary.LittleEndian.Uint16(src[offPayloadLen:]),
		Seq:         binary.LittleEndian.Uint16(src[offSeq:]),
		PeriodCount: binary.LittleEndian.Uint32(src[offPeriodCount:]),
		Subtick:     binary.LittleEndian.Uint16(src[offSubtick:]),
	}, nil
}
