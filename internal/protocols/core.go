// Package protocols contains hand-written proxies for the Wayland
// interfaces the daemon speaks: the core objects it needs for overlay
// surfaces plus the wlr/wp extensions for virtual input, layer surfaces and
// logical output geometry.
//
// Each proxy embeds wl.BaseProxy and sends requests by opcode. Events are
// decoded in Dispatch and forwarded through callback fields owned by the
// engine; proxies never keep state of their own.
package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// Core interface names bound from the registry.
const (
	CompositorInterface = "wl_compositor"
	ShmInterface        = "wl_shm"
	SeatInterface       = "wl_seat"
	OutputInterface     = "wl_output"
)

// wl_seat capability bits.
const (
	SeatCapabilityPointer  = 1
	SeatCapabilityKeyboard = 2
	SeatCapabilityTouch    = 4
)

// wl_shm formats.
const (
	ShmFormatARGB8888 = 0
)

// Compositor is the wl_compositor global.
type Compositor struct {
	wl.BaseProxy
}

// CreateSurface creates a new wl_surface.
func (c *Compositor) CreateSurface() (*Surface, error) {
	surface := &Surface{}
	surface.SetContext(c.Context())
	surface.SetID(c.Context().AllocateID())
	c.Context().Register(surface)

	const opcode = 0
	if err := c.Context().SendRequest(c, opcode, surface); err != nil {
		c.Context().Unregister(surface)
		return nil, err
	}
	return surface, nil
}

// CreateRegion creates a new wl_region.
func (c *Compositor) CreateRegion() (*Region, error) {
	region := &Region{}
	region.SetContext(c.Context())
	region.SetID(c.Context().AllocateID())
	c.Context().Register(region)

	const opcode = 1
	if err := c.Context().SendRequest(c, opcode, region); err != nil {
		c.Context().Unregister(region)
		return nil, err
	}
	return region, nil
}

func (c *Compositor) Dispatch(*wl.Event) {}

// Surface is a wl_surface.
type Surface struct {
	wl.BaseProxy
}

func (s *Surface) Destroy() error {
	const opcode = 0
	err := s.Context().SendRequest(s, opcode)
	s.Context().Unregister(s)
	return err
}

// Attach sets the surface content to a buffer. A nil buffer detaches.
func (s *Surface) Attach(b *Buffer, x, y int32) error {
	const opcode = 1
	if b == nil {
		return s.Context().SendRequest(s, opcode, uint32(0), x, y)
	}
	return s.Context().SendRequest(s, opcode, b, x, y)
}

// SetInputRegion hands input on the surface region to the compositor; an
// empty region makes the surface click-through.
func (s *Surface) SetInputRegion(r *Region) error {
	const opcode = 5
	return s.Context().SendRequest(s, opcode, r)
}

func (s *Surface) Commit() error {
	const opcode = 6
	return s.Context().SendRequest(s, opcode)
}

// DamageBuffer marks a buffer-local rectangle as needing redraw.
func (s *Surface) DamageBuffer(x, y, width, height int32) error {
	const opcode = 9
	return s.Context().SendRequest(s, opcode, x, y, width, height)
}

// Dispatch ignores enter/leave; the overlay never cares which output the
// compositor considers the surface on.
func (s *Surface) Dispatch(*wl.Event) {}

// Region is a wl_region.
type Region struct {
	wl.BaseProxy
}

func (r *Region) Destroy() error {
	const opcode = 0
	err := r.Context().SendRequest(r, opcode)
	r.Context().Unregister(r)
	return err
}

func (r *Region) Add(x, y, width, height int32) error {
	const opcode = 1
	return r.Context().SendRequest(r, opcode, x, y, width, height)
}

func (r *Region) Dispatch(*wl.Event) {}

// Shm is the wl_shm global.
type Shm struct {
	wl.BaseProxy
}

// CreatePool shares a memory file with the compositor.
func (s *Shm) CreatePool(fd int, size int32) (*ShmPool, error) {
	pool := &ShmPool{}
	pool.SetContext(s.Context())
	pool.SetID(s.Context().AllocateID())
	s.Context().Register(pool)

	const opcode = 0
	if err := s.Context().SendRequestWithFDs(s, opcode, []int{fd}, pool, uintptr(fd), size); err != nil {
		s.Context().Unregister(pool)
		return nil, err
	}
	return pool, nil
}

// Dispatch ignores format advertisements; ARGB8888 support is mandatory.
func (s *Shm) Dispatch(*wl.Event) {}

// ShmPool is a wl_shm_pool.
type ShmPool struct {
	wl.BaseProxy
}

// CreateBuffer carves a wl_buffer out of the pool.
func (p *ShmPool) CreateBuffer(offset, width, height, stride int32, format uint32) (*Buffer, error) {
	buffer := &Buffer{}
	buffer.SetContext(p.Context())
	buffer.SetID(p.Context().AllocateID())
	p.Context().Register(buffer)

	const opcode = 0
	if err := p.Context().SendRequest(p, opcode, buffer, offset, width, height, stride, format); err != nil {
		p.Context().Unregister(buffer)
		return nil, err
	}
	return buffer, nil
}

func (p *ShmPool) Destroy() error {
	const opcode = 1
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

func (p *ShmPool) Dispatch(*wl.Event) {}

// Buffer is a wl_buffer. OnRelease fires when the compositor is done
// reading the buffer and it may be reused.
type Buffer struct {
	wl.BaseProxy
	OnRelease func(*Buffer)
}

func (b *Buffer) Destroy() error {
	const opcode = 0
	err := b.Context().SendRequest(b, opcode)
	b.Context().Unregister(b)
	return err
}

func (b *Buffer) Dispatch(event *wl.Event) {
	if event.Opcode == 0 && b.OnRelease != nil {
		b.OnRelease(b)
	}
}

// Seat is a wl_seat. Only capabilities and name are interesting; the daemon
// never asks the seat for real input objects, it only hands the seat to the
// virtual input managers.
type Seat struct {
	wl.BaseProxy
	OnCapabilities func(caps uint32)
	OnName         func(name string)
}

func (s *Seat) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // capabilities
		if s.OnCapabilities != nil {
			s.OnCapabilities(event.Uint32())
		}
	case 1: // name
		if s.OnName != nil {
			s.OnName(event.String())
		}
	}
}

// Output is a wl_output. Geometry comes from xdg-output instead; the only
// event that matters here is done, which closes a configure cycle.
type Output struct {
	wl.BaseProxy
	OnDone func(*Output)
}

// Release tells the compositor the client is finished with the output.
func (o *Output) Release() error {
	const opcode = 0
	err := o.Context().SendRequest(o, opcode)
	o.Context().Unregister(o)
	return err
}

func (o *Output) Dispatch(event *wl.Event) {
	if event.Opcode == 2 && o.OnDone != nil { // done
		o.OnDone(o)
	}
}
