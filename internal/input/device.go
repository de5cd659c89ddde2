package input

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/bnema/wayveil/internal/logger"
)

// One click of a wheel detent, in wl_pointer axis units. Matches what input
// stacks report for discrete wheels.
const wheelClick = 15.0

// inputEventSize is the size of a struct input_event on 64-bit kernels:
// 16-byte timeval followed by type, code, value.
const inputEventSize = 24

// tapTimeoutMS is how long a touch may last and still count as a tap,
// matching the usual input-stack default.
const tapTimeoutMS = 180

// ioctl request plumbing (Linux _IOC encoding).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// EVIOCGRAB = _IOW('E', 0x90, int)
func evioGrab() uintptr {
	return ioc(iocWrite, 'E', 0x90, uint32(unsafe.Sizeof(int32(0))))
}

// EVIOCGBIT(0, len) = _IOC(_IOC_READ, 'E', 0x20, len)
func evioGBit(size uint32) uintptr {
	return ioc(iocRead, 'E', 0x20, size)
}

// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
func evioGAbs(code uint32) uintptr {
	return ioc(iocRead, 'E', 0x40+code, uint32(unsafe.Sizeof(absInfo{})))
}

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// Device is one exclusively grabbed evdev node.
type Device struct {
	fd   int
	node string // "event3"
	path string
	name string // human-readable device name

	hasAbs     bool
	tapCapable bool
	absX, absY absInfo

	// tap detection state; armed by EnableTap once the device-added
	// packet is released
	tapEnabled     bool
	touchActive    bool
	touchCancelled bool
	touchStartSet  bool
	touchStartMS   int64
	touchStartX    int32
	touchStartY    int32

	// per-frame accumulation state
	relX, relY       float64
	wheelV, wheelH   float64
	hasWheelV        bool
	hasWheelH        bool
	pendingX         int32
	pendingY         int32
	absSeen          bool
	readBuf          [inputEventSize * 64]byte
	partial          []byte
}

// Open opens and exclusively grabs an evdev node. Without the grab any other
// process could read the unobfuscated event stream, so a failed grab is an
// error the caller must treat as fatal.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %s: %w", path, err)
	}

	var one int32 = 1
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioGrab(), uintptr(unsafe.Pointer(&one))); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("could not grab evdev device '%s': %w", path, errno)
	}

	d := &Device{
		fd:   fd,
		node: filepath.Base(path),
		path: path,
	}
	d.readCapabilities()
	d.name = readSysName(d.node)

	logger.Debug("Grabbed input device", "node", d.node, "name", d.name)
	return d, nil
}

// readCapabilities probes the supported event types and absolute axis
// ranges. Failures here only degrade decoding, never attachment.
func (d *Device) readCapabilities() {
	// EV_MAX is 0x1f; one bit per event type.
	var types [4]byte
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), evioGBit(uint32(len(types))), uintptr(unsafe.Pointer(&types[0]))); errno != 0 {
		return
	}
	hasBit := func(bit uint16) bool {
		return types[bit/8]&(1<<(bit%8)) != 0
	}

	if hasBit(uint16(evdev.EV_ABS)) {
		d.hasAbs = true
		// Touchpads are the common absolute devices on a desk; remember
		// them so tap-to-click can be configured at release time.
		d.tapCapable = true
		for _, probe := range []struct {
			code uint32
			dst  *absInfo
		}{
			{uint32(evdev.ABS_X), &d.absX},
			{uint32(evdev.ABS_Y), &d.absY},
		} {
			unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), evioGAbs(probe.code), uintptr(unsafe.Pointer(probe.dst)))
		}
	}
}

func readSysName(node string) string {
	raw, err := os.ReadFile(filepath.Join("/sys/class/input", node, "device/name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// Close releases the grab (implicit on close) and the descriptor.
func (d *Device) Close() {
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
	logger.Debug("Released input device", "node", d.node)
}

// FD returns the descriptor for poll integration.
func (d *Device) FD() int { return d.fd }

// Node returns the device node name, e.g. "event3".
func (d *Device) Node() string { return d.node }

// Name returns the human-readable device name, if known.
func (d *Device) Name() string { return d.name }

// TapCapable reports whether the device looks like it supports
// tap-to-click.
func (d *Device) TapCapable() bool { return d.tapCapable }

// EnableTap arms tap-to-click on a capable device and reports whether it
// is armed. With libinput out of the picture there is no config ioctl to
// flip; instead the decoder watches BTN_TOUCH itself and synthesizes a
// left-button tap event for a quick, still, single-finger touch.
func (d *Device) EnableTap() bool {
	if !d.tapCapable {
		return false
	}
	d.tapEnabled = true
	return true
}

// ReadEvents drains everything currently readable from the device and
// returns the decoded events in order. An empty slice with a nil error means
// the device had nothing further to say.
func (d *Device) ReadEvents() ([]Event, error) {
	var out []Event
	for {
		n, err := unix.Read(d.fd, d.readBuf[:])
		if err == unix.EAGAIN {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("failed to read from %s: %w", d.path, err)
		}
		if n == 0 {
			return out, nil
		}
		out = d.feed(d.readBuf[:n], out)
	}
}

// feed parses raw input_event records, buffering any partial record for the
// next read.
func (d *Device) feed(chunk []byte, out []Event) []Event {
	buf := chunk
	if len(d.partial) > 0 {
		buf = append(d.partial, chunk...)
		d.partial = nil
	}
	for len(buf) >= inputEventSize {
		rec := buf[:inputEventSize]
		buf = buf[inputEventSize:]
		sec := int64(binary.LittleEndian.Uint64(rec[0:8]))
		usec := int64(binary.LittleEndian.Uint64(rec[8:16]))
		etype := binary.LittleEndian.Uint16(rec[16:18])
		code := binary.LittleEndian.Uint16(rec[18:20])
		value := int32(binary.LittleEndian.Uint32(rec[20:24]))
		out = d.decode(sec*1000+usec/1000, etype, code, value, out)
	}
	if len(buf) > 0 {
		d.partial = append([]byte(nil), buf...)
	}
	return out
}

func (d *Device) decode(ts int64, etype, code uint16, value int32, out []Event) []Event {
	switch evdev.EvType(etype) {
	case evdev.EV_KEY:
		// Auto-repeat stays with the kernel; only edges are replayed.
		if value != 0 && value != 1 {
			return out
		}
		c := evdev.EvCode(code)
		switch {
		case c == evdev.BTN_TOUCH && d.tapCapable:
			out = d.trackTouch(ts, value == 1, out)
		case c >= evdev.BTN_LEFT && c <= evdev.BTN_TASK:
			if value == 1 && d.touchActive {
				// A physical click while touching is not a tap.
				d.touchCancelled = true
			}
			out = append(out, Event{Device: d, Kind: KindButton, Code: c, Pressed: value == 1})
		case c == evdev.BTN_TOOL_QUINTTAP || (c >= evdev.BTN_TOOL_DOUBLETAP && c <= evdev.BTN_TOOL_QUADTAP):
			if value == 1 && d.touchActive {
				d.touchCancelled = true
			}
		case c >= evdev.BTN_MISC && c < evdev.KEY_OK:
			// Every other code in this block is not replayed: tool and
			// touch state from absolute devices, but also BTN_0..BTN_9,
			// joystick and gamepad buttons.
		default:
			out = append(out, Event{Device: d, Kind: KindKey, Code: c, Pressed: value == 1})
		}
	case evdev.EV_REL:
		switch evdev.EvCode(code) {
		case evdev.REL_X:
			d.relX += float64(value)
		case evdev.REL_Y:
			d.relY += float64(value)
		case evdev.REL_WHEEL:
			// Positive wheel movement is away from the user, which
			// scrolls up: negative on the wire.
			d.wheelV += float64(-value) * wheelClick
			d.hasWheelV = true
		case evdev.REL_HWHEEL:
			d.wheelH += float64(value) * wheelClick
			d.hasWheelH = true
		}
	case evdev.EV_ABS:
		switch evdev.EvCode(code) {
		case evdev.ABS_X:
			d.pendingX = value
			d.absSeen = true
		case evdev.ABS_Y:
			d.pendingY = value
			d.absSeen = true
		}
	case evdev.EV_SYN:
		if evdev.EvCode(code) == evdev.SYN_REPORT {
			out = d.flushFrame(out)
		}
	}
	return out
}

// flushFrame emits the motion and scroll state accumulated since the last
// SYN_REPORT.
func (d *Device) flushFrame(out []Event) []Event {
	if d.relX != 0 || d.relY != 0 {
		out = append(out, Event{Device: d, Kind: KindMotion, DX: d.relX, DY: d.relY})
		d.relX, d.relY = 0, 0
	}
	if d.absSeen {
		// Touch positions are compared frame by frame so a tap is not
		// cancelled by the axes of one report arriving separately.
		d.noteTouchPosition(d.pendingX, d.pendingY)
		out = append(out, Event{
			Device: d,
			Kind:   KindMotionAbs,
			AbsX:   normalize(d.pendingX, d.absX),
			AbsY:   normalize(d.pendingY, d.absY),
		})
		d.absSeen = false
	}
	if d.hasWheelV || d.hasWheelH {
		out = append(out, Event{
			Device:  d,
			Kind:    KindScroll,
			ScrollV: d.wheelV,
			ScrollH: d.wheelH,
			HasV:    d.hasWheelV,
			HasH:    d.hasWheelH,
			Source:  SourceWheel,
		})
		d.wheelV, d.wheelH = 0, 0
		d.hasWheelV, d.hasWheelH = false, false
	}
	return out
}

// trackTouch follows BTN_TOUCH edges. A touch that ends inside the tap
// timeout without being cancelled by motion, extra fingers, or a physical
// click synthesizes a left-button tap.
func (d *Device) trackTouch(ts int64, down bool, out []Event) []Event {
	if down {
		d.touchActive = true
		d.touchCancelled = false
		d.touchStartSet = false
		d.touchStartMS = ts
		return out
	}
	if !d.touchActive {
		return out
	}
	d.touchActive = false
	if !d.tapEnabled || d.touchCancelled {
		return out
	}
	if ts-d.touchStartMS > tapTimeoutMS {
		return out
	}
	return append(out, Event{Device: d, Kind: KindTap, Code: evdev.BTN_LEFT})
}

// noteTouchPosition cancels a tap in progress once the finger drifts past
// the motion slop.
func (d *Device) noteTouchPosition(x, y int32) {
	if !d.touchActive || d.touchCancelled {
		return
	}
	if !d.touchStartSet {
		d.touchStartX, d.touchStartY = x, y
		d.touchStartSet = true
		return
	}
	if absDelta(x, d.touchStartX) > tapSlop(d.absX) || absDelta(y, d.touchStartY) > tapSlop(d.absY) {
		d.touchCancelled = true
	}
}

// tapSlop is the per-axis motion budget for a tap, a small fraction of the
// axis span so it tracks the touchpad's resolution.
func tapSlop(info absInfo) int32 {
	span := info.Max - info.Min
	if span <= 0 {
		return 1
	}
	slop := span / 64
	if slop < 1 {
		slop = 1
	}
	return slop
}

func absDelta(a, b int32) int32 {
	if a > b {
		return a - b
	}
	return b - a
}

func normalize(v int32, info absInfo) float64 {
	span := info.Max - info.Min
	if span <= 0 {
		return 0
	}
	n := float64(v-info.Min) / float64(span)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
