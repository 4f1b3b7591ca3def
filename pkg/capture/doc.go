// Package capture implements the trigger-windowed ring buffer, the flight
// recorder at the heart of the pipeline.
//
// A session moves through four states:
//
//	IDLE -Arm-> ARMED -Trigger-> TRIGGERED -(post budget filled | Stop)-> STOPPED -Clear-> IDLE
//
// While ARMED the ring records continuously, so when Trigger fires the last
// pretrigger bytes are already in place. After the trigger exactly
// posttrigger more bytes are accepted. The resulting window
// [start, start+len) is readable once STOPPED.
//
// Arm validates pretrigger+posttrigger against the ring capacity, so the
// memory cost of a session is fixed up front. Drops are never silent: they
// accumulate in Status.DroppedBytes until the next Arm or Clear.
package capture
