package input

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bnema/wayveil/internal/logger"
)

// ChangeKind tags a hotplug notification.
type ChangeKind int

const (
	DeviceAdded ChangeKind = iota
	DeviceRemoved
)

// Change is one device appearing at or vanishing from the input directory.
type Change struct {
	Kind ChangeKind
	Node string // "event4"
}

// Manager owns the set of grabbed devices and the inotify watch on the
// input directory.
type Manager struct {
	dir       string
	devices   map[string]*Device
	inotifyFD int
}

// NewManager sets up the hotplug watch on dir (normally /dev/input) without
// attaching anything yet.
func NewManager(dir string) (*Manager, error) {
	ifd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hotplug watcher: %w", err)
	}
	if _, err := unix.InotifyAddWatch(ifd, dir, unix.IN_CREATE|unix.IN_DELETE); err != nil {
		unix.Close(ifd)
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Manager{
		dir:       dir,
		devices:   make(map[string]*Device),
		inotifyFD: ifd,
	}, nil
}

// ScanExisting attaches every event* node already present. Devices that
// vanish between the directory listing and the open are skipped; a failed
// grab on a live device is passed up as an error.
func (m *Manager) ScanExisting() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read input directory %s: %w", m.dir, err)
	}
	var nodes []string
	for _, entry := range entries {
		if IsEventNode(entry.Name()) {
			nodes = append(nodes, entry.Name())
		}
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if err := m.Attach(node); err != nil {
			if errors.Is(err, unix.ENOENT) {
				continue
			}
			return err
		}
	}
	logger.Info("Input devices grabbed", "count", len(m.devices))
	return nil
}

// IsEventNode reports whether a directory entry names an evdev node.
func IsEventNode(name string) bool {
	rest, ok := strings.CutPrefix(name, "event")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Attach opens and grabs a node. An already-tracked node is detached first:
// a reappearing name means the kernel recycled it for new hardware.
func (m *Manager) Attach(node string) error {
	if _, ok := m.devices[node]; ok {
		m.Detach(node)
	}
	dev, err := Open(filepath.Join(m.dir, node))
	if err != nil {
		return err
	}
	m.devices[node] = dev
	return nil
}

// Detach closes a tracked node and returns the device so the caller can
// drain any packets still referencing it. Returns nil for unknown nodes.
func (m *Manager) Detach(node string) *Device {
	dev, ok := m.devices[node]
	if !ok {
		return nil
	}
	delete(m.devices, node)
	dev.Close()
	return dev
}

// Devices returns the tracked devices in node order.
func (m *Manager) Devices() []*Device {
	nodes := make([]string, 0, len(m.devices))
	for n := range m.devices {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	out := make([]*Device, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, m.devices[n])
	}
	return out
}

// InotifyFD exposes the hotplug descriptor for poll integration.
func (m *Manager) InotifyFD() int { return m.inotifyFD }

// ReadHotplug drains the inotify stream and reports event* changes. The
// caller applies them so that detach can be ordered with queue draining.
func (m *Manager) ReadHotplug() ([]Change, error) {
	var changes []Change
	var buf [4096]byte
	for {
		n, err := unix.Read(m.inotifyFD, buf[:])
		if err == unix.EAGAIN {
			return changes, nil
		}
		if err != nil {
			return changes, fmt.Errorf("failed to read hotplug notifications: %w", err)
		}
		changes = append(changes, parseInotify(buf[:n])...)
	}
}

func parseInotify(buf []byte) []Change {
	var changes []Change
	for len(buf) >= unix.SizeofInotifyEvent {
		ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[0]))
		nameLen := int(ev.Len)
		total := unix.SizeofInotifyEvent + nameLen
		if total > len(buf) {
			break
		}
		name := string(bytes.TrimRight(buf[unix.SizeofInotifyEvent:total], "\x00"))
		buf = buf[total:]

		if !IsEventNode(name) {
			continue
		}
		switch {
		case ev.Mask&unix.IN_CREATE != 0:
			changes = append(changes, Change{Kind: DeviceAdded, Node: name})
		case ev.Mask&unix.IN_DELETE != 0:
			changes = append(changes, Change{Kind: DeviceRemoved, Node: name})
		}
	}
	return changes
}

// Close releases every device and the watch descriptor.
func (m *Manager) Close() {
	for node := range m.devices {
		m.Detach(node)
	}
	if m.inotifyFD >= 0 {
		unix.Close(m.inotifyFD)
		m.inotifyFD = -1
	}
}
