// Package txsched arbitrates the shared serial link between control traffic
// and diagnostic data.
//
// PDO frames are latency critical: [Scheduler.Next] always serves them first
// and they never touch the budget. LOG frames spend a byte budget that
// [Scheduler.OnTick] refills by a fixed step up to a saturating maximum. With
// the budget at zero, LOG traffic waits; a LOG frame larger than the current
// budget stays queued until enough ticks have passed.
//
//	s := txsched.New(100, 200)
//	s.OnTick()
//	class, n, err := s.Next(txsched.Sources{PDO: pdo, Log: logs}, buf)
//
// [FrameQueue] is a bounded variable-length frame FIFO usable as either
// source. [ServiceScheduler] layers three priorities (P0 PDO, P1 control
// stream, P2 raw capture) on the same scheduler.
package txsched
