// Package daemon wires every component into one engine and runs the
// cooperative event loop.
//
// All state lives in the Engine and is mutated from the single loop
// goroutine; compositor callbacks run synchronously inside dispatch, so
// nothing here needs locking.
package daemon

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/bnema/wayveil/internal/clock"
	"github.com/bnema/wayveil/internal/combo"
	"github.com/bnema/wayveil/internal/config"
	"github.com/bnema/wayveil/internal/cursor"
	"github.com/bnema/wayveil/internal/geometry"
	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/logger"
	"github.com/bnema/wayveil/internal/overlay"
	"github.com/bnema/wayveil/internal/protocols"
	"github.com/bnema/wayveil/internal/random"
	"github.com/bnema/wayveil/internal/scheduler"
	"github.com/bnema/wayveil/internal/wayland"
)

// errEscape signals a clean, user-requested shutdown via the escape combo.
var errEscape = errors.New("escape combo pressed")

// outputSlot ties one registry output global to its geometry slot, its
// xdg-output companion, and its overlay layer.
type outputSlot struct {
	name   uint32
	output *protocols.Output
	xdg    *protocols.XdgOutput
	layer  *overlay.Layer
}

// Engine owns all daemon state.
type Engine struct {
	cfg *config.Config

	clk   *clock.Clock
	rng   *random.Source
	sched *scheduler.Scheduler
	space *geometry.Space
	cur   *cursor.Engine
	esc   *combo.Tracker

	inputs *input.Manager
	conn   *wayland.Conn

	outputs [geometry.MaxOutputs]*outputSlot

	vp *protocols.VirtualPointer
	vk *protocols.VirtualKeyboard

	color uint32

	// Set by dispatch callbacks that have no error return; the loop
	// checks it after every dispatch.
	deferredErr error
}

// New connects to the compositor and prepares every component. Devices are
// not grabbed yet; Run does that so construction stays side-effect free on
// the input side.
func New(cfg *config.Config) (*Engine, error) {
	color, err := config.ParseColor(cfg.Cursor.Color)
	if err != nil {
		return nil, err
	}
	esc, err := combo.Parse(cfg.Input.EscapeKeyCombo)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		clk:   clock.New(),
		rng:   random.New(),
		space: geometry.NewSpace(),
		esc:   combo.NewTracker(esc),
		color: color,
	}
	e.cur = cursor.NewEngine(e.space)
	e.sched = scheduler.New(e.clk, e.rng, cfg.Input.MaxDelayMS)

	conn, err := wayland.Connect()
	if err != nil {
		return nil, err
	}
	e.conn = conn

	conn.Seat.OnCapabilities = func(caps uint32) {
		if caps&protocols.SeatCapabilityKeyboard == 0 {
			e.fail(errors.New("no keyboard capability for seat, cannot continue"))
		}
	}
	conn.Seat.OnName = func(name string) {
		logger.Debug("Seat announced", "name", name)
	}
	conn.OnOutput = e.addOutput
	conn.OnGlobalRemoved = e.removeGlobal
	conn.FlushPendingOutputs()

	vp, err := conn.PointerManager.CreateVirtualPointer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual pointer: %w", err)
	}
	e.vp = vp

	vk, err := conn.KeyboardManager.CreateVirtualKeyboard(conn.Seat)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}
	e.vk = vk

	fd, size, err := protocols.CreateDefaultKeymap()
	if err != nil {
		return nil, err
	}
	if err := vk.Keymap(protocols.KeymapFormatXkbV1, fd, size); err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("failed to install keymap: %w", err)
	}
	_ = syscall.Close(fd)

	// Pick up seat capabilities, output geometries and the first layer
	// configures before input starts flowing.
	if err := conn.Roundtrip(); err != nil {
		return nil, fmt.Errorf("setup roundtrip failed: %w", err)
	}
	if e.deferredErr != nil {
		return nil, e.deferredErr
	}

	inputs, err := input.NewManager(cfg.Input.DeviceDir)
	if err != nil {
		return nil, err
	}
	e.inputs = inputs

	return e, nil
}

// fail records an error raised inside a dispatch callback.
func (e *Engine) fail(err error) {
	if e.deferredErr == nil {
		e.deferredErr = err
	}
}

// addOutput assigns a fresh slot to a new wl_output global and creates its
// xdg-output and overlay layer.
func (e *Engine) addOutput(name uint32, out *protocols.Output) {
	slot := -1
	for i := range e.outputs {
		if e.outputs[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		e.fail(fmt.Errorf("cannot handle more than %d displays attached at once", geometry.MaxOutputs))
		return
	}

	xdg, err := e.conn.XdgOutputManager.GetXdgOutput(out)
	if err != nil {
		e.fail(fmt.Errorf("failed to create xdg output: %w", err))
		return
	}
	layer, err := overlay.NewLayer(e.conn.Compositor, e.conn.LayerShell, e.conn.Shm, out, e.color)
	if err != nil {
		e.fail(err)
		return
	}

	idx := slot
	xdg.OnLogicalPosition = func(x, y int32) {
		e.space.StagePosition(idx, x, y)
	}
	xdg.OnLogicalSize = func(w, h int32) {
		e.space.StageSize(idx, w, h)
	}
	out.OnDone = func(*protocols.Output) {
		promoted, err := e.space.Commit(idx)
		if err != nil {
			e.fail(err)
			return
		}
		if promoted {
			layer.FramePending = true
		}
	}

	e.outputs[slot] = &outputSlot{name: name, output: out, xdg: xdg, layer: layer}
	logger.Debug("Output attached", "slot", slot, "name", name)
}

// removeGlobal tears down an output when its global goes away. Dependent
// objects go first, then the geometry slot; packets never reference
// outputs, so the queue is untouched.
func (e *Engine) removeGlobal(name uint32) {
	for i, slot := range e.outputs {
		if slot == nil || slot.name != name {
			continue
		}
		slot.layer.Destroy()
		_ = slot.xdg.Destroy()
		_ = slot.output.Release()
		e.outputs[i] = nil

		if err := e.space.Remove(i); err != nil {
			e.fail(err)
			return
		}
		logger.Debug("Output detached", "slot", i, "name", name)
		return
	}
}

// handleInput feeds one decoded event through the escape watcher and into
// the scheduler. Keyboard state is inspected before any buffering so the
// escape hatch works no matter how congested the queue is.
func (e *Engine) handleInput(ev input.Event) error {
	if ev.Kind == input.KindKey {
		if e.esc.HandleKey(ev.Code, ev.Pressed) {
			return errEscape
		}
	}

	switch ev.Kind {
	case input.KindMotion:
		e.cur.MoveRelative(ev.DX, ev.DY)
		return e.queueMove()
	case input.KindMotionAbs:
		e.cur.MoveAbsolute(ev.AbsX, ev.AbsY)
		return e.queueMove()
	default:
		evCopy := ev
		return e.sched.EnqueueDevice(&evCopy)
	}
}

// queueMove settles the cursor on a valid position, flags the affected
// overlays, and schedules (or coalesces) the resulting pointer move.
func (e *Engine) queueMove() error {
	prevOut, curOut, err := e.cur.Relocate()
	if err != nil {
		return err
	}
	e.markPending(prevOut)
	e.markPending(curOut)
	_, err = e.sched.EnqueuePointerMove(int32(e.cur.X), int32(e.cur.Y))
	return err
}

func (e *Engine) markPending(idx int) {
	if idx >= 0 && idx < len(e.outputs) && e.outputs[idx] != nil {
		e.outputs[idx].layer.FramePending = true
	}
}

// redrawPending redraws every overlay whose frame-pending flag is set. The
// overlay reads the cursor position as of now, which already reflects the
// move that triggered the flag.
func (e *Engine) redrawPending() error {
	lc := e.space.AbsToLocal(int32(e.cur.X), int32(e.cur.Y))
	for i, slot := range e.outputs {
		if slot == nil || !slot.layer.FramePending {
			continue
		}
		onLayer := lc.Valid && lc.Output == i
		if err := slot.layer.Draw(lc, onLayer); err != nil {
			return fmt.Errorf("overlay redraw failed: %w", err)
		}
	}
	return nil
}
