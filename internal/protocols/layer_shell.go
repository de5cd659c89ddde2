package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// LayerShellInterface is the wlr layer shell global.
const LayerShellInterface = "zwlr_layer_shell_v1"

// Layer values for get_layer_surface.
const (
	LayerBackground uint32 = 0
	LayerBottom     uint32 = 1
	LayerTop        uint32 = 2
	LayerOverlay    uint32 = 3
)

// Anchor bits for LayerSurface.SetAnchor.
const (
	AnchorTop    uint32 = 1
	AnchorBottom uint32 = 2
	AnchorLeft   uint32 = 4
	AnchorRight  uint32 = 8
	AnchorAll           = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// LayerShell is the zwlr_layer_shell_v1 global.
type LayerShell struct {
	wl.BaseProxy
}

// GetLayerSurface wraps a wl_surface into a layer surface on the given
// output and layer.
func (l *LayerShell) GetLayerSurface(surface *Surface, output *Output, layer uint32, namespace string) (*LayerSurface, error) {
	ls := &LayerSurface{}
	ls.SetContext(l.Context())
	ls.SetID(l.Context().AllocateID())
	l.Context().Register(ls)

	const opcode = 0
	if err := l.Context().SendRequest(l, opcode, ls, surface, output, layer, namespace); err != nil {
		l.Context().Unregister(ls)
		return nil, err
	}
	return ls, nil
}

func (l *LayerShell) Destroy() error {
	const opcode = 1
	err := l.Context().SendRequest(l, opcode)
	l.Context().Unregister(l)
	return err
}

func (l *LayerShell) Dispatch(*wl.Event) {}

// LayerSurface is a zwlr_layer_surface_v1.
type LayerSurface struct {
	wl.BaseProxy
	OnConfigure func(serial, width, height uint32)
	OnClosed    func()
}

func (l *LayerSurface) SetSize(width, height uint32) error {
	const opcode = 0
	return l.Context().SendRequest(l, opcode, width, height)
}

func (l *LayerSurface) SetAnchor(anchor uint32) error {
	const opcode = 1
	return l.Context().SendRequest(l, opcode, anchor)
}

func (l *LayerSurface) SetExclusiveZone(zone int32) error {
	const opcode = 2
	return l.Context().SendRequest(l, opcode, zone)
}

func (l *LayerSurface) AckConfigure(serial uint32) error {
	const opcode = 6
	return l.Context().SendRequest(l, opcode, serial)
}

func (l *LayerSurface) Destroy() error {
	const opcode = 7
	err := l.Context().SendRequest(l, opcode)
	l.Context().Unregister(l)
	return err
}

func (l *LayerSurface) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // configure
		if l.OnConfigure != nil {
			serial := event.Uint32()
			width := event.Uint32()
			height := event.Uint32()
			l.OnConfigure(serial, width, height)
		}
	case 1: // closed
		if l.OnClosed != nil {
			l.OnClosed()
		}
	}
}
