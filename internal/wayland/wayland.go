// Package wayland owns the compositor connection: the socket, the registry,
// and the bound globals the daemon cannot run without.
//
// Output globals come and go at runtime, so each one is bound as it appears
// and handed to the engine; everything else is bound once at connect time
// and checked for presence, since a compositor without virtual input or
// layer shell support cannot host the daemon at all.
package wayland

import (
	"fmt"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/wayveil/internal/logger"
	"github.com/bnema/wayveil/internal/protocols"
)

// bindable is what the registry needs of a proxy to bind it.
type bindable interface {
	wl.Proxy
	SetContext(*wl.Context)
	SetID(uint32)
}

// Conn is the live compositor connection.
type Conn struct {
	display  *wl.Display
	ctx      *wl.Context
	registry *wl.Registry

	Compositor       *protocols.Compositor
	Shm              *protocols.Shm
	Seat             *protocols.Seat
	LayerShell       *protocols.LayerShell
	XdgOutputManager *protocols.XdgOutputManager
	PointerManager   *protocols.VirtualPointerManager
	KeyboardManager  *protocols.VirtualKeyboardManager

	seatBound bool

	// OnOutput fires for every wl_output global; the engine owns slot
	// assignment and overlay setup. OnGlobalRemoved fires for any removed
	// global so the engine can match it against its outputs.
	OnOutput        func(name uint32, output *protocols.Output)
	OnGlobalRemoved func(name uint32)

	// Output globals seen before OnOutput was installed.
	pendingOutputs []pendingOutput
}

type pendingOutput struct {
	name   uint32
	output *protocols.Output
}

// Connect dials the session compositor (WAYLAND_DISPLAY) and binds the
// required globals. Any missing required protocol is reported by name.
func Connect() (*Conn, error) {
	display, err := wl.Connect("")
	if err != nil {
		return nil, fmt.Errorf("could not get Wayland display: %w", err)
	}

	c := &Conn{
		display:  display,
		ctx:      display.Context(),
		registry: display.GetRegistry(),
	}

	c.registry.AddGlobalHandler(c)
	c.registry.AddGlobalRemoveHandler(c)

	if err := display.Roundtrip(); err != nil {
		return nil, fmt.Errorf("initial registry roundtrip failed: %w", err)
	}

	for _, req := range []struct {
		iface string
		ok    bool
	}{
		{protocols.CompositorInterface, c.Compositor != nil},
		{protocols.ShmInterface, c.Shm != nil},
		{protocols.SeatInterface, c.Seat != nil},
		{protocols.LayerShellInterface, c.LayerShell != nil},
		{protocols.XdgOutputManagerInterface, c.XdgOutputManager != nil},
		{protocols.VirtualPointerManagerInterface, c.PointerManager != nil},
		{protocols.VirtualKeyboardManagerInterface, c.KeyboardManager != nil},
	} {
		if !req.ok {
			return nil, fmt.Errorf("compositor does not advertise %s", req.iface)
		}
	}

	return c, nil
}

// HandleRegistryGlobal implements wl.RegistryGlobalHandler.
func (c *Conn) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	switch event.Interface {
	case protocols.CompositorInterface:
		p := &protocols.Compositor{}
		if err := c.bind(event, p); err == nil {
			c.Compositor = p
		}
	case protocols.ShmInterface:
		p := &protocols.Shm{}
		if err := c.bind(event, p); err == nil {
			c.Shm = p
		}
	case protocols.SeatInterface:
		if c.seatBound {
			logger.Warn("Multiple seats detected, all but first will be ignored")
			return
		}
		p := &protocols.Seat{}
		if err := c.bind(event, p); err == nil {
			c.Seat = p
			c.seatBound = true
		}
	case protocols.LayerShellInterface:
		p := &protocols.LayerShell{}
		if err := c.bind(event, p); err == nil {
			c.LayerShell = p
		}
	case protocols.XdgOutputManagerInterface:
		p := &protocols.XdgOutputManager{}
		if err := c.bind(event, p); err == nil {
			c.XdgOutputManager = p
		}
	case protocols.VirtualPointerManagerInterface:
		p := &protocols.VirtualPointerManager{}
		if err := c.bind(event, p); err == nil {
			c.PointerManager = p
		}
	case protocols.VirtualKeyboardManagerInterface:
		p := &protocols.VirtualKeyboardManager{}
		if err := c.bind(event, p); err == nil {
			c.KeyboardManager = p
		}
	case protocols.OutputInterface:
		p := &protocols.Output{}
		if err := c.bind(event, p); err != nil {
			logger.Errorf("Failed to bind wl_output %d: %v", event.Name, err)
			return
		}
		if c.OnOutput != nil {
			c.OnOutput(event.Name, p)
		} else {
			c.pendingOutputs = append(c.pendingOutputs, pendingOutput{name: event.Name, output: p})
		}
	}
}

// HandleRegistryGlobalRemove implements wl.RegistryGlobalRemoveHandler.
func (c *Conn) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	if c.OnGlobalRemoved != nil {
		c.OnGlobalRemoved(event.Name)
	}
}

// FlushPendingOutputs replays output globals that arrived before the engine
// installed its handler.
func (c *Conn) FlushPendingOutputs() {
	if c.OnOutput == nil {
		return
	}
	for _, po := range c.pendingOutputs {
		c.OnOutput(po.name, po.output)
	}
	c.pendingOutputs = nil
}

func (c *Conn) bind(event wl.RegistryGlobalEvent, p bindable) error {
	id, err := c.registry.BindID(event.Name, event.Interface, event.Version)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", event.Interface, err)
	}
	p.SetContext(c.ctx)
	p.SetID(id)
	c.ctx.Register(p)
	return nil
}

// Fd exposes the display socket for poll integration.
func (c *Conn) Fd() int {
	return c.display.Fd()
}

// DispatchOne reads and dispatches a single compositor message. Call only
// when the socket is readable; the loop polls first.
func (c *Conn) DispatchOne() error {
	return c.display.Dispatch()
}

// Roundtrip flushes and waits for the compositor to process everything sent
// so far.
func (c *Conn) Roundtrip() error {
	return c.display.Roundtrip()
}

// Close tears the connection down.
func (c *Conn) Close() {
	if c.ctx != nil {
		_ = c.ctx.Close()
	}
}
