// Package packer serializes snapshot fields into a little-endian wire buffer.
//
// A profile is an ordered list of [Field] descriptors. The wire order is the
// descriptor order, not the struct declaration order, so the same snapshot
// type can feed several profiles:
//
//	var s Snapshot
//	fields := []packer.Field{
//	    {ID: 1, Offset: unsafe.Offsetof(s.IMeas), Size: unsafe.Sizeof(s.IMeas)},
//	    {ID: 2, Offset: unsafe.Offsetof(s.Period), Size: unsafe.Sizeof(s.Period)},
//	}
//	n, err := packer.Pack(packer.Image(&s), fields, buf)
//
// Fields are treated as scalars: on a big-endian host each field's bytes are
// reversed as a unit.
package packer
