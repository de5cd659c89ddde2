package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// wlr virtual pointer interface names.
const (
	VirtualPointerManagerInterface = "zwlr_virtual_pointer_manager_v1"
	VirtualPointerInterface        = "zwlr_virtual_pointer_v1"
)

// wl_pointer button states carried by Button.
const (
	ButtonStateReleased uint32 = 0
	ButtonStatePressed  uint32 = 1
)

// wl_pointer scroll axes.
const (
	AxisVerticalScroll   uint32 = 0
	AxisHorizontalScroll uint32 = 1
)

// wl_pointer axis sources.
const (
	AxisSourceWheel      uint32 = 0
	AxisSourceFinger     uint32 = 1
	AxisSourceContinuous uint32 = 2
)

// VirtualPointerManager is the zwlr_virtual_pointer_manager_v1 global.
type VirtualPointerManager struct {
	wl.BaseProxy
}

// CreateVirtualPointer creates a virtual pointer for the seat. A nil seat
// lets the compositor pick.
func (m *VirtualPointerManager) CreateVirtualPointer(seat *Seat) (*VirtualPointer, error) {
	pointer := &VirtualPointer{}
	pointer.SetContext(m.Context())
	pointer.SetID(m.Context().AllocateID())
	m.Context().Register(pointer)

	const opcode = 0
	var err error
	if seat == nil {
		err = m.Context().SendRequest(m, opcode, uint32(0), pointer)
	} else {
		err = m.Context().SendRequest(m, opcode, seat, pointer)
	}
	if err != nil {
		m.Context().Unregister(pointer)
		return nil, err
	}
	return pointer, nil
}

func (m *VirtualPointerManager) Destroy() error {
	const opcode = 1
	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

func (m *VirtualPointerManager) Dispatch(*wl.Event) {}

// VirtualPointer injects pointer events into the compositor. All requests
// take the same millisecond timestamps the matching wl_pointer events would
// carry.
type VirtualPointer struct {
	wl.BaseProxy
}

// Motion sends relative motion.
func (p *VirtualPointer) Motion(time uint32, dx, dy wl.Fixed) error {
	const opcode = 0
	return p.Context().SendRequest(p, opcode, time, dx, dy)
}

// MotionAbsolute positions the pointer at (x, y) within an extent.
func (p *VirtualPointer) MotionAbsolute(time, x, y, xExtent, yExtent uint32) error {
	const opcode = 1
	return p.Context().SendRequest(p, opcode, time, x, y, xExtent, yExtent)
}

// Button presses or releases a button identified by its evdev code.
func (p *VirtualPointer) Button(time, button, state uint32) error {
	const opcode = 2
	return p.Context().SendRequest(p, opcode, time, button, state)
}

// Axis scrolls along one axis.
func (p *VirtualPointer) Axis(time, axis uint32, value wl.Fixed) error {
	const opcode = 3
	return p.Context().SendRequest(p, opcode, time, axis, value)
}

// Frame terminates a batch of pointer events.
func (p *VirtualPointer) Frame() error {
	const opcode = 4
	return p.Context().SendRequest(p, opcode)
}

// AxisSource names the source of subsequent axis events in this frame.
func (p *VirtualPointer) AxisSource(source uint32) error {
	const opcode = 5
	return p.Context().SendRequest(p, opcode, source)
}

// AxisStop ends scrolling on an axis.
func (p *VirtualPointer) AxisStop(time, axis uint32) error {
	const opcode = 6
	return p.Context().SendRequest(p, opcode, time, axis)
}

// AxisDiscrete scrolls with an attached discrete step count.
func (p *VirtualPointer) AxisDiscrete(time, axis uint32, value wl.Fixed, discrete int32) error {
	const opcode = 7
	return p.Context().SendRequest(p, opcode, time, axis, value, discrete)
}

func (p *VirtualPointer) Destroy() error {
	const opcode = 8
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

func (p *VirtualPointer) Dispatch(*wl.Event) {}
