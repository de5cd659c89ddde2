package scheduler

import (
	"fmt"

	"github.com/bnema/wayveil/internal/clock"
	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/random"
)

// Sink receives packets as they come due. The wire timestamp is the
// scheduled release time narrowed to the 32-bit protocol representation.
type Sink interface {
	ReleaseDeviceEvent(ev *input.Event, wire uint32) error
	ReleasePointerMove(x, y int32, wire uint32) error
}

// Clock is the timebase the scheduler samples. Satisfied by *clock.Clock.
type Clock interface {
	NowMS() int64
}

// Scheduler owns the packet queue and the delay-sampling policy.
type Scheduler struct {
	clk      Clock
	rng      *random.Source
	maxDelay int64

	q           queue
	prevRelease int64
}

func New(clk Clock, rng *random.Source, maxDelayMS int64) *Scheduler {
	return &Scheduler{
		clk:      clk,
		rng:      rng,
		maxDelay: maxDelayMS,
	}
}

// schedule samples a release delay for a packet enqueued now.
//
// The lower bound is the time still to run until the previous packet's
// release, clamped to [0, maxDelay]. Sampling uniformly on that interval is
// the least the randomness can be narrowed while keeping release times
// non-decreasing; once the queue has drained the bound is 0 again and the
// delay is fully random.
func (s *Scheduler) schedule(now int64) (int64, error) {
	lower := s.prevRelease - now
	if lower < 0 {
		lower = 0
	}
	if lower > s.maxDelay {
		lower = s.maxDelay
	}
	delay, err := s.rng.Uniform(lower, s.maxDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to sample release delay: %w", err)
	}
	sched := now + delay
	s.prevRelease = sched
	return sched, nil
}

// EnqueueDevice appends a decoded device event. Device events never
// coalesce.
func (s *Scheduler) EnqueueDevice(ev *input.Event) error {
	sched, err := s.schedule(s.clk.NowMS())
	if err != nil {
		return err
	}
	s.q.pushBack(&DeviceEvent{Ev: ev, sched: sched})
	return nil
}

// EnqueuePointerMove schedules an absolute cursor target. When the tail of
// the queue is an unreleased pointer move its target is overwritten in
// place instead: intermediate positions would be visually overwritten
// anyway, and fusing them bounds queue growth and hides the true motion
// event rate. Returns whether a new packet was created.
func (s *Scheduler) EnqueuePointerMove(x, y int32) (bool, error) {
	if tail, ok := s.q.peekBack().(*PointerMove); ok {
		tail.X = x
		tail.Y = y
		return false, nil
	}
	sched, err := s.schedule(s.clk.NowMS())
	if err != nil {
		return false, err
	}
	s.q.pushBack(&PointerMove{X: x, Y: y, sched: sched})
	return true, nil
}

// ReleaseDue pops and dispatches every packet whose release time has
// arrived. A timestamp that no longer fits the wire format stops the run
// immediately; the caller reports it fatally so the supervisor restarts
// the daemon with a fresh timebase.
func (s *Scheduler) ReleaseDue(sink Sink) error {
	now := s.clk.NowMS()
	for {
		head := s.q.peekFront()
		if head == nil || head.SchedTime() > now {
			return nil
		}
		wire, err := clock.WireTime(head.SchedTime())
		if err != nil {
			return err
		}
		s.q.popFront()
		switch p := head.(type) {
		case *DeviceEvent:
			if err := sink.ReleaseDeviceEvent(p.Ev, wire); err != nil {
				return err
			}
		case *PointerMove:
			if err := sink.ReleasePointerMove(p.X, p.Y, wire); err != nil {
				return err
			}
		}
	}
}

// PollTimeoutMS returns how long the event loop may sleep: the time until
// the head packet is due, or -1 (block indefinitely) when the queue is
// empty.
func (s *Scheduler) PollTimeoutMS() int {
	head := s.q.peekFront()
	if head == nil {
		return -1
	}
	remaining := head.SchedTime() - s.clk.NowMS()
	if remaining < 0 {
		return 0
	}
	const maxTimeout = int64(1<<31 - 1)
	if remaining > maxTimeout {
		return int(maxTimeout)
	}
	return int(remaining)
}

// DropDevice removes every queued packet that references dev. Called on
// hotplug-out so freed device handles never reach release.
func (s *Scheduler) DropDevice(dev *input.Device) {
	s.q.filter(func(p Packet) bool {
		de, ok := p.(*DeviceEvent)
		return !ok || de.Ev.Device != dev
	})
}

// Len returns the number of queued packets.
func (s *Scheduler) Len() int { return s.q.len() }

// Pending returns the queued packets in release order. Intended for tests
// and diagnostics.
func (s *Scheduler) Pending() []Packet {
	out := make([]Packet, len(s.q.packets))
	copy(out, s.q.packets)
	return out
}
