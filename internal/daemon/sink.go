package daemon

import (
	"fmt"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/logger"
	"github.com/bnema/wayveil/internal/protocols"
)

// The engine is the scheduler's release sink: due packets are replayed to
// the compositor through the virtual input protocols.

// ReleaseDeviceEvent replays a buffered device event.
func (e *Engine) ReleaseDeviceEvent(ev *input.Event, wire uint32) error {
	switch ev.Kind {
	case input.KindKey:
		state := protocols.KeyStateReleased
		if ev.Pressed {
			state = protocols.KeyStatePressed
		}
		return e.vk.Key(wire, uint32(ev.Code), state)

	case input.KindButton:
		state := protocols.ButtonStateReleased
		if ev.Pressed {
			state = protocols.ButtonStatePressed
		}
		if err := e.vp.Button(wire, uint32(ev.Code), state); err != nil {
			return err
		}
		return e.vp.Frame()

	case input.KindScroll:
		if err := e.releaseScroll(ev, wire); err != nil {
			return err
		}
		return e.vp.Frame()

	case input.KindTap:
		// A tap is a full click: press and release in back-to-back
		// frames, both stamped with the packet's release time.
		if err := e.vp.Button(wire, uint32(ev.Code), protocols.ButtonStatePressed); err != nil {
			return err
		}
		if err := e.vp.Frame(); err != nil {
			return err
		}
		if err := e.vp.Button(wire, uint32(ev.Code), protocols.ButtonStateReleased); err != nil {
			return err
		}
		return e.vp.Frame()

	case input.KindDeviceAdded:
		// Tap-to-click is armed on capable devices as they join.
		if ev.Device != nil && ev.Device.EnableTap() {
			logger.Debug("Tap-to-click enabled", "device", ev.Device.Node())
		}
		return nil

	default:
		return fmt.Errorf("unhandled packet kind %d at release", ev.Kind)
	}
}

// releaseScroll emits scroll axes the way the decoder observed them: a
// zero-valued axis becomes an axis stop, and the axis source is named per
// axis even then.
func (e *Engine) releaseScroll(ev *input.Event, wire uint32) error {
	source := protocols.AxisSourceWheel
	switch ev.Source {
	case input.SourceFinger:
		source = protocols.AxisSourceFinger
	case input.SourceContinuous:
		source = protocols.AxisSourceContinuous
	}

	if ev.HasV {
		if ev.ScrollV == 0 {
			if err := e.vp.AxisStop(wire, protocols.AxisVerticalScroll); err != nil {
				return err
			}
		} else {
			if err := e.vp.Axis(wire, protocols.AxisVerticalScroll, wl.NewFixed(ev.ScrollV)); err != nil {
				return err
			}
		}
		if err := e.vp.AxisSource(source); err != nil {
			return err
		}
	}

	if ev.HasH {
		if ev.ScrollH == 0 {
			if err := e.vp.AxisStop(wire, protocols.AxisHorizontalScroll); err != nil {
				return err
			}
		} else {
			if err := e.vp.Axis(wire, protocols.AxisHorizontalScroll, wl.NewFixed(ev.ScrollH)); err != nil {
				return err
			}
		}
		if err := e.vp.AxisSource(source); err != nil {
			return err
		}
	}
	return nil
}

// ReleasePointerMove replays a buffered absolute motion, translated into
// the pointer space the compositor expects: coordinates relative to the
// space origin over the extent of the bounding box.
func (e *Engine) ReleasePointerMove(x, y int32, wire uint32) error {
	min, max, ok := e.space.Bounds()
	if !ok {
		return nil
	}
	relX := int64(x) - int64(min.X)
	relY := int64(y) - int64(min.Y)
	extX := int64(max.X) - int64(min.X)
	extY := int64(max.Y) - int64(min.Y)
	if relX < 0 || relY < 0 || relX > extX || relY > extY {
		// The layout changed under a queued move; skip it rather than
		// emit a position outside the advertised extent.
		return nil
	}
	if err := e.vp.MotionAbsolute(wire, uint32(relX), uint32(relY), uint32(extX), uint32(extY)); err != nil {
		return err
	}
	return e.vp.Frame()
}
