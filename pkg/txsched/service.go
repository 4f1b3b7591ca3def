package txsched

import (
	"fmt"
)

// Prio selects one of the service transmit queues.
type Prio int

const (
	// PrioP0 carries PDO frames. It is never metered.
	PrioP0 Prio = iota
	// PrioP1 carries the control variable stream.
	PrioP1
	// PrioP2 carries raw capture data.
	PrioP2
)

// String returns a human-readable representation of the priority.
func (p Prio) String() string {
	switch p {
	case PrioP0:
		return "P0"
	case PrioP1:
		return "P1"
	case PrioP2:
		return "P2"
	default:
		return "UNKNOWN"
	}
}

// Priority is a Source that strictly prefers High over Low. While High has
// a frame waiting, Low is not served even if High's frame does not fit.
type Priority struct {
	High *FrameQueue
	Low  *FrameQueue
}

// Available reports whether either queue has a frame.
func (p Priority) Available() bool {
	return p.High.Available() || p.Low.Available()
}

// Pop moves the next frame into out.
func (p Priority) Pop(out []byte) int {
	if p.High.Available() {
		return p.High.Pop(out)
	}
	return p.Low.Pop(out)
}

// ServiceStats reports queue health.
type ServiceStats struct {
	P1Drops     uint32 `json:"p1_drops"`
	P2Drops     uint32 `json:"p2_drops"`
	Q0HighWater uint32 `json:"q0_highwater"`
	Q1HighWater uint32 `json:"q1_highwater"`
	Q2HighWater uint32 `json:"q2_highwater"`
	Budget      uint32 `json:"budget"`
}

// ServiceConfig sizes the three queues.
type ServiceConfig struct {
	Q0Depth  int
	Q1Depth  int
	Q2Depth  int
	MaxFrame int
}

// ServiceScheduler multiplexes three frame priorities onto one link. P0 is
// always served first. P1 and P2 share the log budget once SetBudget has
// enabled it; until then they drain unmetered.
type ServiceScheduler struct {
	q   [3]*FrameQueue
	sch *Scheduler
	src Sources

	budgetEnabled bool
}

// NewService allocates the three queues.
func NewService(cfg ServiceConfig) (*ServiceScheduler, error) {
	depths := [3]int{cfg.Q0Depth, cfg.Q1Depth, cfg.Q2Depth}
	s := &ServiceScheduler{sch: New(0, 0)}
	for i, depth := range depths {
		q, err := NewFrameQueue(depth, cfg.MaxFrame)
		if err != nil {
			return nil, fmt.Errorf("queue %s: %w", Prio(i), err)
		}
		s.q[i] = q
	}
	s.src = Sources{PDO: s.q[PrioP0], Log: Priority{High: s.q[PrioP1], Low: s.q[PrioP2]}}
	return s, nil
}

// SetBudget meters P1 and P2 at perTick bytes per tick, accumulating up to
// max. A perTick of 0 disables metering. A max below perTick, or below the
// largest frame P1 or P2 accept, is raised so every queued frame can drain.
func (s *ServiceScheduler) SetBudget(perTick, max uint32) {
	if max < perTick {
		max = perTick
	}
	for _, p := range []Prio{PrioP1, PrioP2} {
		if frame := uint32(s.q[p].MaxFrame()); max < frame {
			max = frame
		}
	}
	s.sch.Tune(perTick, max)
	s.budgetEnabled = perTick > 0
}

// OnTick refills the log budget.
func (s *ServiceScheduler) OnTick() {
	s.sch.OnTick()
}

// Enqueue queues a copy of frame at prio.
func (s *ServiceScheduler) Enqueue(prio Prio, frame []byte) bool {
	if prio < PrioP0 || prio > PrioP2 {
		return false
	}
	return s.q[prio].Push(frame)
}

// Dequeue moves the next frame into out and reports its priority.
func (s *ServiceScheduler) Dequeue(out []byte) (int, Prio, bool) {
	if !s.budgetEnabled {
		for p := PrioP0; p <= PrioP2; p++ {
			if s.q[p].Available() {
				if n := s.q[p].Pop(out); n > 0 {
					return n, p, true
				}
				return 0, p, false
			}
		}
		return 0, PrioP0, false
	}

	// The metered source drains P1 before P2; note which one will be served.
	logPrio := PrioP2
	if s.q[PrioP1].Available() {
		logPrio = PrioP1
	}
	class, n, err := s.sch.Next(s.src, out)
	if err != nil {
		return 0, PrioP0, false
	}
	if class == ClassPDO {
		return n, PrioP0, true
	}
	return n, logPrio, true
}

// Queue returns the queue behind prio.
func (s *ServiceScheduler) Queue(prio Prio) *FrameQueue {
	return s.q[prio]
}

// Stats returns drop counts, high-water marks and the current budget.
func (s *ServiceScheduler) Stats() ServiceStats {
	return ServiceStats{
		P1Drops:     s.q[PrioP1].Drops(),
		P2Drops:     s.q[PrioP2].Drops(),
		Q0HighWater: s.q[PrioP0].HighWater(),
		Q1HighWater: s.q[PrioP1].HighWater(),
		Q2HighWater: s.q[PrioP2].HighWater(),
		Budget:      s.sch.Budget(),
	}
}
