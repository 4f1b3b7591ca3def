// Package record implements the on-wire record format of the capture pipeline.
//
// Every record is a fixed 16-byte little-endian header followed by
// payload_len payload bytes:
//
//	off  size  field
//	0    2     magic (0xA55A)
//	2    1     type
//	3    1     flags (bit 0: payload ends with CRC-32)
//	4    2     source_id
//	6    2     payload_len
//	8    2     seq
//	10   4     period_count
//	14   2     subtick
//
// When FlagHasCRC32 is set the last four payload bytes are the reflected
// CRC-32 of the bytes before them; they count toward payload_len.
// Records are concatenated without outer framing. [Scanner] recovers them
// from a stream by resynchronizing on the magic value.
//
// # Version
//
// See version.go for the record format version written by the recorder.
package record
