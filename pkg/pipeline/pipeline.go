package pipeline

import (
	"github.com/bft-labs/flightrec/pkg/packer"
	"github.com/bft-labs/flightrec/pkg/spsc"
)

// FastPublish hands a snapshot to the slow domain. It never blocks; false
// means the queue was full and the snapshot is lost.
func FastPublish(q *spsc.Queue, snapshot []byte) bool {
	return q.Push(snapshot)
}

// SlowConsume takes the oldest snapshot off the queue.
func SlowConsume(q *spsc.Queue, out []byte) bool {
	return q.Pop(out)
}

// SlowPack serializes a consumed snapshot according to fields.
func SlowPack(snapshot []byte, fields []packer.Field, out []byte) (int, error) {
	return packer.Pack(snapshot, fields, out)
}
