package scheduler

import (
	"encoding/binary"
	"io"
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wayveil/internal/clock"
	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/random"
)

// fakeClock is a manually advanced timebase.
type fakeClock struct {
	now int64
}

func (c *fakeClock) NowMS() int64 { return c.now }

// zeroReader yields endless zero bytes; Uniform then always returns its
// lower bound.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// valueReader yields a fixed little-endian 64-bit value per draw.
type valueReader struct {
	v uint64
}

func (r *valueReader) Read(p []byte) (int, error) {
	if len(p) < 8 {
		return 0, io.ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(p[:8], r.v)
	return 8, nil
}

// recordingSink captures released packets in order.
type recordingSink struct {
	events []releasedEvent
}

type releasedEvent struct {
	ev   *input.Event
	x, y int32
	wire uint32
	move bool
}

func (s *recordingSink) ReleaseDeviceEvent(ev *input.Event, wire uint32) error {
	s.events = append(s.events, releasedEvent{ev: ev, wire: wire})
	return nil
}

func (s *recordingSink) ReleasePointerMove(x, y int32, wire uint32) error {
	s.events = append(s.events, releasedEvent{x: x, y: y, wire: wire, move: true})
	return nil
}

func keyEvent(code uint16) *input.Event {
	return &input.Event{Kind: input.KindKey, Code: evdev.EvCode(code), Pressed: true}
}

func TestScheduling(t *testing.T) {
	t.Run("zero max delay releases at enqueue time", func(t *testing.T) {
		clk := &fakeClock{now: 1000}
		s := New(clk, random.New(), 0)

		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		pending := s.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, int64(1000), pending[0].SchedTime())
	})

	t.Run("delay stays within the configured bound", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 100)

		for i := 0; i < 200; i++ {
			clk.now = int64(i * 500) // queue drains between events
			require.NoError(t, s.EnqueueDevice(keyEvent(30)))
			p := s.Pending()[s.Len()-1]
			delta := p.SchedTime() - clk.now
			assert.GreaterOrEqual(t, delta, int64(0))
			assert.LessOrEqual(t, delta, int64(100))
			var sink recordingSink
			clk.now += 200
			require.NoError(t, s.ReleaseDue(&sink))
		}
	})

	t.Run("release times are non-decreasing under a burst", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 100)

		for i := int64(0); i < 5; i++ {
			clk.now = i // events at t = 0..4 ms
			require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		}
		pending := s.Pending()
		require.Len(t, pending, 5)
		for i := 1; i < len(pending); i++ {
			assert.GreaterOrEqual(t, pending[i].SchedTime(), pending[i-1].SchedTime())
		}
		for i, p := range pending {
			delta := p.SchedTime() - int64(i)
			assert.GreaterOrEqual(t, delta, int64(0))
			assert.LessOrEqual(t, delta, int64(100))
		}
	})

	t.Run("lower bound tracks the previous release", func(t *testing.T) {
		clk := &fakeClock{}
		// Entropy pinned to zero keeps every draw at the lower bound.
		s := New(clk, random.NewFromReader(&valueReader{v: 0}), 100)
		s.prevRelease = 80

		clk.now = 10
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		// lower = prevRelease - now = 70, and the zero draw lands on it.
		assert.Equal(t, int64(80), s.Pending()[0].SchedTime())
	})

	t.Run("lower bound clamps to max delay", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.NewFromReader(zeroReader{}), 100)
		s.prevRelease = 5000

		clk.now = 10
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		assert.Equal(t, int64(110), s.Pending()[0].SchedTime())
	})
}

func TestCoalescing(t *testing.T) {
	t.Run("adjacent pointer moves fuse at the tail", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 100)

		created, err := s.EnqueuePointerMove(10, 10)
		require.NoError(t, err)
		assert.True(t, created)
		created, err = s.EnqueuePointerMove(20, 20)
		require.NoError(t, err)
		assert.False(t, created)
		created, err = s.EnqueuePointerMove(30, 30)
		require.NoError(t, err)
		assert.False(t, created)

		require.Equal(t, 1, s.Len())
		move := s.Pending()[0].(*PointerMove)
		assert.Equal(t, int32(30), move.X)
		assert.Equal(t, int32(30), move.Y)
	})

	t.Run("device events never coalesce", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 100)

		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("a device event between moves blocks fusion", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 100)

		_, err := s.EnqueuePointerMove(10, 10)
		require.NoError(t, err)
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))
		created, err := s.EnqueuePointerMove(20, 20)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 3, s.Len())
	})
}

func TestRelease(t *testing.T) {
	t.Run("releases only due packets in order", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.NewFromReader(zeroReader{}), 100)
		s.prevRelease = 0

		evA := keyEvent(30)
		evB := keyEvent(48)
		clk.now = 0
		require.NoError(t, s.EnqueueDevice(evA)) // due at 0
		s.prevRelease = 50
		require.NoError(t, s.EnqueueDevice(evB)) // due at 50

		var sink recordingSink
		clk.now = 10
		require.NoError(t, s.ReleaseDue(&sink))
		require.Len(t, sink.events, 1)
		assert.Same(t, evA, sink.events[0].ev)

		clk.now = 50
		require.NoError(t, s.ReleaseDue(&sink))
		require.Len(t, sink.events, 2)
		assert.Same(t, evB, sink.events[1].ev)
	})

	t.Run("wire timestamp equals scheduled time", func(t *testing.T) {
		clk := &fakeClock{now: 12345}
		s := New(clk, random.New(), 0)
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))

		var sink recordingSink
		require.NoError(t, s.ReleaseDue(&sink))
		require.Len(t, sink.events, 1)
		assert.Equal(t, uint32(12345), sink.events[0].wire)
	})

	t.Run("aborts on 32-bit wire overflow", func(t *testing.T) {
		clk := &fakeClock{now: int64(1) << 33}
		s := New(clk, random.New(), 0)
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))

		var sink recordingSink
		err := s.ReleaseDue(&sink)
		assert.ErrorIs(t, err, clock.ErrWireOverflow)
		assert.Empty(t, sink.events)
	})

	t.Run("pointer moves carry their target", func(t *testing.T) {
		clk := &fakeClock{now: 7}
		s := New(clk, random.New(), 0)
		_, err := s.EnqueuePointerMove(640, 480)
		require.NoError(t, err)

		var sink recordingSink
		require.NoError(t, s.ReleaseDue(&sink))
		require.Len(t, sink.events, 1)
		assert.True(t, sink.events[0].move)
		assert.Equal(t, int32(640), sink.events[0].x)
		assert.Equal(t, int32(480), sink.events[0].y)
	})
}

func TestPollTimeout(t *testing.T) {
	t.Run("empty queue blocks indefinitely", func(t *testing.T) {
		s := New(&fakeClock{}, random.New(), 100)
		assert.Equal(t, -1, s.PollTimeoutMS())
	})

	t.Run("tracks time until head release", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.NewFromReader(zeroReader{}), 100)
		s.prevRelease = 40
		require.NoError(t, s.EnqueueDevice(keyEvent(30))) // due at 40

		clk.now = 25
		assert.Equal(t, 15, s.PollTimeoutMS())
	})

	t.Run("overdue head polls immediately", func(t *testing.T) {
		clk := &fakeClock{}
		s := New(clk, random.New(), 0)
		require.NoError(t, s.EnqueueDevice(keyEvent(30)))

		clk.now = 500
		assert.Equal(t, 0, s.PollTimeoutMS())
	})
}

func TestDropDevice(t *testing.T) {
	clk := &fakeClock{}
	s := New(clk, random.New(), 100)

	devA := &input.Device{}
	devB := &input.Device{}
	require.NoError(t, s.EnqueueDevice(&input.Event{Device: devA, Kind: input.KindKey}))
	_, err := s.EnqueuePointerMove(1, 1)
	require.NoError(t, err)
	require.NoError(t, s.EnqueueDevice(&input.Event{Device: devB, Kind: input.KindKey}))
	require.NoError(t, s.EnqueueDevice(&input.Event{Device: devA, Kind: input.KindKey}))

	s.DropDevice(devA)

	require.Equal(t, 2, s.Len())
	for _, p := range s.Pending() {
		if de, ok := p.(*DeviceEvent); ok {
			assert.NotSame(t, devA, de.Ev.Device)
		}
	}
}
