package packer

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/bft-labs/flightrec/internal/domain"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrNoSpace    = domain.ErrNoSpace
)

// Field describes one snapshot field: where it lives in the host image and
// how many bytes it spans. A zero Size is a schema placeholder and packs
// nothing.
type Field struct {
	ID     uint16
	Offset uintptr
	Size   uintptr
}

// HostOrder is the byte order of the running host.
var HostOrder binary.ByteOrder = binary.NativeEndian

// Pack copies each field of snapshot into dst in descriptor order, converting
// from the host byte order to little-endian. On overflow it returns the bytes
// written so far together with ErrNoSpace.
func Pack(snapshot []byte, fields []Field, dst []byte) (int, error) {
	return PackOrder(snapshot, fields, dst, HostOrder)
}

// PackOrder is Pack with an explicit source byte order.
func PackOrder(snapshot []byte, fields []Field, dst []byte, order binary.ByteOrder) (int, error) {
	written := 0
	for _, f := range fields {
		if f.Size == 0 {
			continue
		}
		end := f.Offset + f.Size
		if end < f.Offset || end > uintptr(len(snapshot)) {
			return written, fmt.Errorf("field %d [%d:%d] outside %d-byte snapshot: %w",
				f.ID, f.Offset, end, len(snapshot), ErrInvalidArg)
		}
		if uintptr(written)+f.Size > uintptr(len(dst)) {
			return written, fmt.Errorf("field %d needs %d bytes, %d left: %w",
				f.ID, f.Size, len(dst)-written, ErrNoSpace)
		}
		PutLE(dst[written:written+int(f.Size)], snapshot[f.Offset:end], order)
		written += int(f.Size)
	}
	return written, nil
}

// PutLE writes src, laid out in the given byte order, into dst as
// little-endian. len(dst) must be at least len(src).
func PutLE(dst, src []byte, order binary.ByteOrder) {
	if order == binary.LittleEndian || isLittle(order) {
		copy(dst, src)
		return
	}
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

// Size returns the total number of bytes fields will pack to.
func Size(fields []Field) int {
	total := 0
	for _, f := range fields {
		total += int(f.Size)
	}
	return total
}

// Image returns the in-memory bytes of *v. The slice aliases v.
func Image[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

func isLittle(order binary.ByteOrder) bool {
	var word [2]byte
	order.PutUint16(word[:], 1)
	return word[0] == 1
}
