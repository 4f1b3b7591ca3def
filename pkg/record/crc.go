package record

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// CRCSize is the size of the trailing checksum in bytes.
const CRCSize = 4

// Checksum returns the reflected CRC-32 of data (polynomial 0xEDB88320,
// initial value 0xFFFFFFFF, final complement).
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// AppendCRC writes the checksum of buf[:n] as 4 little-endian bytes at buf[n:]
// and returns the new length. The capacity is len(buf).
func AppendCRC(buf []byte, n int) (int, error) {
	if n < 0 || n > len(buf) {
		return n, fmt.Errorf("append crc at %d of %d: %w", n, len(buf), ErrInvalidArg)
	}
	if n+CRCSize > len(buf) {
		return n, fmt.Errorf("append crc at %d of %d: %w", n, len(buf), ErrNoSpace)
	}
	binary.LittleEndian.PutUint32(buf[n:], Checksum(buf[:n]))
	return n + CRCSize, nil
}

// VerifyCRC checks a payload whose last 4 bytes are the checksum of the rest.
func VerifyCRC(payload []byte) bool {
	if len(payload) < CRCSize {
		return false
	}
	body := payload[:len(payload)-CRCSize]
	want := binary.LittleEndian.Uint32(payload[len(payload)-CRCSize:])
	return Checksum(body) == want
}
