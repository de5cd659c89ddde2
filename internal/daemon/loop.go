package daemon

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/logger"
)

// Run grabs the input devices and drives the cooperative loop until the
// escape combo fires (nil) or something fatal happens (non-nil). The only
// blocking point is the poll; everything else is bounded work.
func (e *Engine) Run() error {
	if err := e.inputs.ScanExisting(); err != nil {
		return err
	}
	defer e.inputs.Close()
	defer e.conn.Close()

	for _, dev := range e.inputs.Devices() {
		if err := e.sched.EnqueueDevice(&input.Event{Device: dev, Kind: input.KindDeviceAdded}); err != nil {
			return err
		}
	}

	logger.Info("Input anonymization active",
		"max_delay_ms", e.cfg.Input.MaxDelayMS,
		"escape_combo", e.cfg.Input.EscapeKeyCombo)

	for {
		if e.deferredErr != nil {
			return e.deferredErr
		}

		if err := e.sched.ReleaseDue(e); err != nil {
			return err
		}
		if err := e.redrawPending(); err != nil {
			return err
		}

		fds, devs := e.pollSet()
		timeout := e.sched.PollTimeoutMS()
		if _, err := unix.Poll(fds, timeout); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll failed: %w", err)
		}

		// Wayland first: geometry updates should land before input that
		// may depend on them.
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if err := e.conn.DispatchOne(); err != nil {
				return fmt.Errorf("wayland dispatch failed: %w", err)
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			if err := e.applyHotplug(); err != nil {
				return err
			}
		}

		for i, dev := range devs {
			if fds[2+i].Revents&unix.POLLIN == 0 {
				continue
			}
			if err := e.drainDevice(dev); err != nil {
				if errors.Is(err, errEscape) {
					logger.Info("Escape combo pressed, shutting down")
					return nil
				}
				return err
			}
		}
	}
}

// pollSet builds the descriptor set for this pass: the Wayland socket, the
// hotplug watcher, then one entry per grabbed device. The device slice is
// index-aligned with fds[2:].
func (e *Engine) pollSet() ([]unix.PollFd, []*input.Device) {
	devs := e.inputs.Devices()
	fds := make([]unix.PollFd, 0, 2+len(devs))
	fds = append(fds,
		unix.PollFd{Fd: int32(e.conn.Fd()), Events: unix.POLLIN},
		unix.PollFd{Fd: int32(e.inputs.InotifyFD()), Events: unix.POLLIN},
	)
	for _, dev := range devs {
		fds = append(fds, unix.PollFd{Fd: int32(dev.FD()), Events: unix.POLLIN})
	}
	return fds, devs
}

// drainDevice decodes everything a device has buffered and feeds it
// through the escape watcher and scheduler.
func (e *Engine) drainDevice(dev *input.Device) error {
	if dev.FD() < 0 {
		// Detached by a hotplug notification earlier this pass.
		return nil
	}
	events, err := dev.ReadEvents()
	if err != nil {
		// A device yanked mid-read surfaces as ENODEV before the
		// hotplug notification; detach it like a removal.
		if errors.Is(err, unix.ENODEV) {
			e.detachDevice(dev.Node())
			return nil
		}
		return err
	}
	for i := range events {
		if err := e.handleInput(events[i]); err != nil {
			return err
		}
	}
	return nil
}

// applyHotplug reacts to device nodes appearing and disappearing. A node
// reappearing under a tracked name is detached first, queued packets
// included, and then attached again.
func (e *Engine) applyHotplug() error {
	changes, err := e.inputs.ReadHotplug()
	if err != nil {
		return err
	}
	for _, change := range changes {
		switch change.Kind {
		case input.DeviceAdded:
			if err := e.attachDevice(change.Node); err != nil {
				return err
			}
		case input.DeviceRemoved:
			e.detachDevice(change.Node)
		}
	}
	return nil
}

func (e *Engine) attachDevice(node string) error {
	e.detachDevice(node)
	if err := e.inputs.Attach(node); err != nil {
		// The node can vanish again before we get to it.
		if errors.Is(err, unix.ENOENT) {
			return nil
		}
		return err
	}
	for _, dev := range e.inputs.Devices() {
		if dev.Node() == node {
			logger.Info("Device attached", "node", node, "name", dev.Name())
			return e.sched.EnqueueDevice(&input.Event{Device: dev, Kind: input.KindDeviceAdded})
		}
	}
	return nil
}

// detachDevice drops a device and drains its queued packets so nothing
// referencing it can reach release.
func (e *Engine) detachDevice(node string) {
	dev := e.inputs.Detach(node)
	if dev == nil {
		return
	}
	e.sched.DropDevice(dev)
	logger.Info("Device detached", "node", node)
}
