// Package input owns the evdev side of the daemon: opening and exclusively
// grabbing device nodes, decoding their event streams, and tracking hotplug.
//
// Decoding is deliberately minimal. Events are grouped by SYN_REPORT frames
// the way the kernel delivers them: relative motion and wheel movement
// accumulate across a frame, keys and buttons are emitted in stream order.
package input

import (
	evdev "github.com/holoplot/go-evdev"
)

// Kind discriminates decoded input events.
type Kind uint8

const (
	// KindKey is a keyboard key press or release.
	KindKey Kind = iota + 1
	// KindButton is a pointer button press or release.
	KindButton
	// KindMotion is relative pointer motion accumulated over one frame.
	KindMotion
	// KindMotionAbs is absolute pointer motion, normalized to [0, 1].
	KindMotionAbs
	// KindScroll is wheel movement on one or both axes.
	KindScroll
	// KindTap is a synthesized tap-to-click: a quick, still touch on a
	// tap-enabled device, replayed as a button click. Code carries the
	// button.
	KindTap
	// KindDeviceAdded marks a freshly attached device whose input
	// configuration is applied when the event is released.
	KindDeviceAdded
)

// ScrollSource mirrors the wl_pointer axis sources the sink can name.
type ScrollSource uint8

const (
	SourceWheel ScrollSource = iota
	SourceFinger
	SourceContinuous
)

// Event is one decoded input event. Only the fields relevant to its Kind
// are populated.
type Event struct {
	Device *Device
	Kind   Kind

	// KindKey / KindButton
	Code    evdev.EvCode
	Pressed bool

	// KindMotion
	DX, DY float64

	// KindMotionAbs, normalized against the device's axis ranges
	AbsX, AbsY float64

	// KindScroll
	ScrollV, ScrollH float64
	HasV, HasH       bool
	Source           ScrollSource
}
