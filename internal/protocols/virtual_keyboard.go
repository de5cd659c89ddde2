package protocols

import (
	"fmt"
	"syscall"

	"github.com/bnema/wlturbo/wl"
)

// virtual keyboard interface names.
const (
	VirtualKeyboardManagerInterface = "zwp_virtual_keyboard_manager_v1"
	VirtualKeyboardInterface        = "zwp_virtual_keyboard_v1"
)

// wl_keyboard key states.
const (
	KeyStateReleased uint32 = 0
	KeyStatePressed  uint32 = 1
)

// KeymapFormatXkbV1 is the only keymap format in use.
const KeymapFormatXkbV1 uint32 = 1

// VirtualKeyboardManager is the zwp_virtual_keyboard_manager_v1 global.
type VirtualKeyboardManager struct {
	wl.BaseProxy
}

// CreateVirtualKeyboard creates a virtual keyboard bound to the seat.
func (m *VirtualKeyboardManager) CreateVirtualKeyboard(seat *Seat) (*VirtualKeyboard, error) {
	keyboard := &VirtualKeyboard{}
	keyboard.SetContext(m.Context())
	keyboard.SetID(m.Context().AllocateID())
	m.Context().Register(keyboard)

	const opcode = 0
	if err := m.Context().SendRequest(m, opcode, seat, keyboard); err != nil {
		m.Context().Unregister(keyboard)
		return nil, err
	}
	return keyboard, nil
}

// Destroy drops the manager; the protocol has no destructor request.
func (m *VirtualKeyboardManager) Destroy() error {
	m.Context().Unregister(m)
	return nil
}

func (m *VirtualKeyboardManager) Dispatch(*wl.Event) {}

// VirtualKeyboard injects keyboard events into the compositor.
type VirtualKeyboard struct {
	wl.BaseProxy
}

// Keymap hands the compositor an XKB keymap via shared memory.
func (k *VirtualKeyboard) Keymap(format uint32, fd int, size uint32) error {
	const opcode = 0
	if fd < 0 {
		return fmt.Errorf("invalid keymap file descriptor: %d", fd)
	}
	return k.Context().SendRequestWithFDs(k, opcode, []int{fd}, format, uintptr(fd), size)
}

// Key presses or releases a key. The protocol takes raw evdev key codes,
// not XKB codes; no +8 offset applies here.
func (k *VirtualKeyboard) Key(time, key, state uint32) error {
	const opcode = 1
	return k.Context().SendRequest(k, opcode, time, key, state)
}

// Modifiers updates the modifier state.
func (k *VirtualKeyboard) Modifiers(modsDepressed, modsLatched, modsLocked, group uint32) error {
	const opcode = 2
	return k.Context().SendRequest(k, opcode, modsDepressed, modsLatched, modsLocked, group)
}

func (k *VirtualKeyboard) Destroy() error {
	const opcode = 3
	err := k.Context().SendRequest(k, opcode)
	k.Context().Unregister(k)
	return err
}

func (k *VirtualKeyboard) Dispatch(*wl.Event) {}

// defaultKeymap is a minimal pc105/us XKB keymap. The compositor only needs
// something compilable to translate the raw evdev codes the daemon replays.
const defaultKeymap = `xkb_keymap {
	xkb_keycodes  { include "evdev+aliases(qwerty)"	};
	xkb_types     { include "complete"	};
	xkb_compat    { include "complete"	};
	xkb_symbols   { include "pc+us+inet(evdev)"	};
	xkb_geometry  { include "pc(pc105)"	};
};`

// CreateDefaultKeymap builds the default keymap in an anonymous shared
// memory file and returns the descriptor plus its size, null terminator
// included. The caller owns the descriptor.
func CreateDefaultKeymap() (int, uint32, error) {
	size := len(defaultKeymap) + 1
	fd, err := wl.CreateAnonymousFile(int64(size))
	if err != nil {
		return -1, 0, fmt.Errorf("failed to create keymap file: %w", err)
	}

	data, err := wl.MapMemory(fd, size)
	if err != nil {
		_ = syscall.Close(fd)
		return -1, 0, fmt.Errorf("failed to map keymap file: %w", err)
	}
	defer func() { _ = wl.UnmapMemory(data) }()

	copy(data, defaultKeymap)
	data[len(defaultKeymap)] = 0

	if _, err := syscall.Seek(fd, 0, 0); err != nil {
		_ = syscall.Close(fd)
		return -1, 0, fmt.Errorf("failed to rewind keymap file: %w", err)
	}

	if size < 0 || size > 0x7FFFFFFF {
		_ = syscall.Close(fd)
		return -1, 0, fmt.Errorf("invalid keymap size: %d", size)
	}
	return fd, uint32(size), nil
}
