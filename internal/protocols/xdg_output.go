package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// XdgOutputManagerInterface is the xdg-output global.
const XdgOutputManagerInterface = "zxdg_output_manager_v1"

// XdgOutputManager hands out per-output logical geometry objects.
type XdgOutputManager struct {
	wl.BaseProxy
}

func (m *XdgOutputManager) Destroy() error {
	const opcode = 0
	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

// GetXdgOutput creates the logical-geometry companion for a wl_output.
func (m *XdgOutputManager) GetXdgOutput(output *Output) (*XdgOutput, error) {
	xdg := &XdgOutput{}
	xdg.SetContext(m.Context())
	xdg.SetID(m.Context().AllocateID())
	m.Context().Register(xdg)

	const opcode = 1
	if err := m.Context().SendRequest(m, opcode, xdg, output); err != nil {
		m.Context().Unregister(xdg)
		return nil, err
	}
	return xdg, nil
}

func (m *XdgOutputManager) Dispatch(*wl.Event) {}

// XdgOutput reports an output's position and size in the compositor's
// logical coordinate space. Updates are staged by the handlers and take
// effect on the owning wl_output's done event, not on the (deprecated)
// xdg-output done.
type XdgOutput struct {
	wl.BaseProxy
	OnLogicalPosition func(x, y int32)
	OnLogicalSize     func(width, height int32)
}

func (x *XdgOutput) Destroy() error {
	const opcode = 0
	err := x.Context().SendRequest(x, opcode)
	x.Context().Unregister(x)
	return err
}

func (x *XdgOutput) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // logical_position
		if x.OnLogicalPosition != nil {
			px := event.Int32()
			py := event.Int32()
			x.OnLogicalPosition(px, py)
		}
	case 1: // logical_size
		if x.OnLogicalSize != nil {
			w := event.Int32()
			h := event.Int32()
			x.OnLogicalSize(w, h)
		}
	}
}
