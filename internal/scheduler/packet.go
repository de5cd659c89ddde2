// Package scheduler buffers decoded input packets, assigns each one a
// randomly delayed release time, and releases them in order.
//
// The release times along the queue are non-decreasing: each enqueue clamps
// the lower bound of its random delay to the previous packet's release time,
// which keeps ordering without giving up randomness once the queue drains.
package scheduler

import (
	"github.com/bnema/wayveil/internal/input"
)

// Packet is a buffered input event awaiting release. The two
// implementations are DeviceEvent and PointerMove; nothing else satisfies
// the interface.
type Packet interface {
	// SchedTime is the scheduled release time in clock milliseconds.
	SchedTime() int64

	sealed()
}

// DeviceEvent wraps a decoded input event verbatim.
type DeviceEvent struct {
	Ev    *input.Event
	sched int64
}

func (p *DeviceEvent) SchedTime() int64 { return p.sched }
func (p *DeviceEvent) sealed()          {}

// PointerMove is an absolute cursor target in the global pointer space.
type PointerMove struct {
	X, Y  int32
	sched int64
}

func (p *PointerMove) SchedTime() int64 { return p.sched }
func (p *PointerMove) sealed()          {}

// queue is a FIFO of packets with access to the tail for coalescing.
type queue struct {
	packets []Packet
}

func (q *queue) pushBack(p Packet) {
	q.packets = append(q.packets, p)
}

func (q *queue) popFront() Packet {
	if len(q.packets) == 0 {
		return nil
	}
	p := q.packets[0]
	q.packets[0] = nil
	q.packets = q.packets[1:]
	return p
}

func (q *queue) peekFront() Packet {
	if len(q.packets) == 0 {
		return nil
	}
	return q.packets[0]
}

func (q *queue) peekBack() Packet {
	if len(q.packets) == 0 {
		return nil
	}
	return q.packets[len(q.packets)-1]
}

func (q *queue) len() int { return len(q.packets) }

// filter keeps only packets matching keep, preserving order.
func (q *queue) filter(keep func(Packet) bool) {
	kept := q.packets[:0]
	for _, p := range q.packets {
		if keep(p) {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(q.packets); i++ {
		q.packets[i] = nil
	}
	q.packets = kept
}
