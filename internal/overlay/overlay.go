// Package overlay draws the virtual cursor on a layer surface per output.
//
// The compositor cursor never moves (all input is replayed with a delay), so
// the daemon paints its own crosshair where the delayed pointer currently
// is. Each output gets an overlay-layer surface backed by one shared-memory
// pool carved into a small ring of frames; a frame cycles
// Free -> InFlight -> Returned -> Free, and its cursor block is blanked
// when it returns so reuse always starts from transparent pixels.
package overlay

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/wayveil/internal/geometry"
	"github.com/bnema/wayveil/internal/logger"
	"github.com/bnema/wayveil/internal/protocols"
)

// CursorRadius is the half-size of the drawn cursor block in pixels.
const CursorRadius = 15

// frameRing is the number of buffers per output pool.
const frameRing = 2

// BufferState tracks one frame through its lifecycle.
type BufferState int

const (
	BufferFree BufferState = iota
	BufferInFlight
	BufferReturned
)

type frame struct {
	buf    *protocols.Buffer
	pix    []uint32
	state  BufferState
	drawnX int32
	drawnY int32
}

// recycle blanks the frame's cursor block and returns it to the pool.
func (f *frame) recycle(width, height int32) {
	f.state = BufferReturned
	if f.drawnX >= 0 && f.drawnY >= 0 {
		drawBlock(f.pix, f.drawnX, f.drawnY, width, height, CursorRadius, 0, false)
		f.drawnX, f.drawnY = -1, -1
	}
	f.state = BufferFree
}

// Layer is the drawable overlay for one output.
type Layer struct {
	compositor *protocols.Compositor
	shm        *protocols.Shm

	surface      *protocols.Surface
	layerSurface *protocols.LayerSurface

	width, height int32
	stride        int32
	frameSize     int

	shmData []byte
	pool    *protocols.ShmPool
	frames  [frameRing]*frame

	configured bool

	// FramePending marks the overlay for redraw on the next loop pass.
	FramePending bool

	// last drawn cursor position in surface-local coordinates, -1 when the
	// cursor was not on this output.
	lastX, lastY int32

	color uint32
}

// NewLayer creates the overlay surface for an output and registers it with
// the compositor. The layer sits on the overlay layer, spans the whole
// output, and takes no input.
func NewLayer(compositor *protocols.Compositor, shell *protocols.LayerShell, shm *protocols.Shm, output *protocols.Output, color uint32) (*Layer, error) {
	surface, err := compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("could not create Wayland surface: %w", err)
	}

	ls, err := shell.GetLayerSurface(surface, output, protocols.LayerOverlay, "dev.bnema.wayveil")
	if err != nil {
		return nil, fmt.Errorf("could not create layer surface: %w", err)
	}

	l := &Layer{
		compositor:   compositor,
		shm:          shm,
		surface:      surface,
		layerSurface: ls,
		lastX:        -1,
		lastY:        -1,
		color:        color,
		FramePending: true,
	}

	ls.OnConfigure = l.handleConfigure
	ls.OnClosed = func() { l.configured = false }

	if err := ls.SetAnchor(protocols.AnchorAll); err != nil {
		return nil, err
	}
	if err := surface.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

// handleConfigure (re)allocates the pixel pool for the negotiated size.
// Shared-memory failures here leave the daemon unable to honor its overlay
// contract, so they are fatal.
func (l *Layer) handleConfigure(serial, width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	if int32(width) < 0 || int32(height) < 0 {
		logger.Fatalf("Layer surface size out of range: %dx%d", width, height)
	}
	l.teardownPool()

	l.width = int32(width)
	l.height = int32(height)
	l.stride = l.width * 4
	l.frameSize = int(l.stride) * int(l.height)

	fd, err := wl.CreateAnonymousFile(int64(l.frameSize * frameRing))
	if err != nil {
		logger.Fatalf("Could not create shared memory fd: %v", err)
	}
	data, err := wl.MapMemory(fd, l.frameSize*frameRing)
	if err != nil {
		_ = syscall.Close(fd)
		logger.Fatalf("Failed to map shared memory block for frame: %v", err)
	}
	l.shmData = data

	pool, err := l.shm.CreatePool(fd, int32(l.frameSize*frameRing))
	if err != nil {
		logger.Fatalf("Could not share frame pool with compositor: %v", err)
	}
	// The pool holds its own reference to the file.
	_ = syscall.Close(fd)
	l.pool = pool

	for i := 0; i < frameRing; i++ {
		buf, err := pool.CreateBuffer(int32(i*l.frameSize), l.width, l.height, l.stride, protocols.ShmFormatARGB8888)
		if err != nil {
			logger.Fatalf("Could not create frame buffer: %v", err)
		}
		f := &frame{
			buf:    buf,
			pix:    pixels(data[i*l.frameSize : (i+1)*l.frameSize]),
			state:  BufferFree,
			drawnX: -1,
			drawnY: -1,
		}
		buf.OnRelease = func(*protocols.Buffer) { f.recycle(l.width, l.height) }
		l.frames[i] = f
	}

	// The overlay must never swallow clicks: give it an empty input region.
	if region, err := l.compositor.CreateRegion(); err == nil {
		_ = region.Add(0, 0, 0, 0)
		_ = l.surface.SetInputRegion(region)
		_ = region.Destroy()
	}

	if err := l.layerSurface.AckConfigure(serial); err != nil {
		logger.Fatalf("Could not acknowledge layer configure: %v", err)
	}
	l.configured = true
	l.FramePending = true
	l.lastX, l.lastY = -1, -1
}

// freeFrame returns a frame ready for drawing, or nil.
func (l *Layer) freeFrame() *frame {
	for _, f := range l.frames {
		if f != nil && f.state == BufferFree {
			return f
		}
	}
	return nil
}

// Configured reports whether the compositor has completed a configure
// cycle for this layer.
func (l *Layer) Configured() bool { return l.configured }

// Size returns the layer dimensions in surface-local pixels.
func (l *Layer) Size() (int32, int32) { return l.width, l.height }

// Draw paints the cursor at cur (surface-local) if onLayer, erases the
// previous cursor position, and commits. The redraw is skipped silently
// when the layer has no negotiated buffers yet or every frame is still in
// flight; the next pass retries.
func (l *Layer) Draw(cur geometry.LocalCoord, onLayer bool) error {
	if !l.configured {
		return nil
	}
	f := l.freeFrame()
	if f == nil {
		return nil
	}
	l.FramePending = false

	if l.lastX >= 0 && l.lastY >= 0 {
		drawBlock(f.pix, l.lastX, l.lastY, l.width, l.height, CursorRadius, 0, false)
		l.damage(l.lastX-CursorRadius, l.lastY-CursorRadius,
			l.lastX+CursorRadius+1, l.lastY+CursorRadius+1)
	}
	if onLayer {
		drawBlock(f.pix, cur.X, cur.Y, l.width, l.height, CursorRadius, l.color, true)
		l.damage(cur.X-CursorRadius, cur.Y-CursorRadius,
			cur.X+CursorRadius+1, cur.Y+CursorRadius+1)
	}

	if err := l.surface.Attach(f.buf, 0, 0); err != nil {
		return err
	}
	if err := l.surface.Commit(); err != nil {
		return err
	}
	f.state = BufferInFlight
	if onLayer {
		f.drawnX, f.drawnY = cur.X, cur.Y
		l.lastX, l.lastY = cur.X, cur.Y
	} else {
		f.drawnX, f.drawnY = -1, -1
		l.lastX, l.lastY = -1, -1
	}
	return nil
}

// damage clamps negative origins to zero before marking the region;
// negative coordinates make some compositors damage nothing at all.
func (l *Layer) damage(x, y, width, height int32) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	_ = l.surface.DamageBuffer(x, y, width, height)
}

// Destroy tears the overlay down: layer surface, buffers, pool, mapping,
// surface.
func (l *Layer) Destroy() {
	if l.layerSurface != nil {
		_ = l.layerSurface.Destroy()
		l.layerSurface = nil
	}
	l.teardownPool()
	if l.surface != nil {
		_ = l.surface.Destroy()
		l.surface = nil
	}
	l.configured = false
}

func (l *Layer) teardownPool() {
	for i, f := range l.frames {
		if f == nil {
			continue
		}
		_ = f.buf.Destroy()
		l.frames[i] = nil
	}
	if l.pool != nil {
		_ = l.pool.Destroy()
		l.pool = nil
	}
	if l.shmData != nil {
		_ = wl.UnmapMemory(l.shmData)
		l.shmData = nil
	}
}

// pixels views a byte slice as ARGB pixels.
func pixels(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// drawBlock fills a square block of radius rad around (x, y). With
// crosshair set, the row and column through the center are painted in
// color and the rest cleared; without it the whole block is cleared. The
// block is clipped to the layer bounds.
func drawBlock(pix []uint32, x, y, layerWidth, layerHeight, rad int32, color uint32, crosshair bool) {
	startX := x - rad
	if startX < 0 {
		startX = 0
	}
	startY := y - rad
	if startY < 0 {
		startY = 0
	}
	endX := x + rad
	if endX >= layerWidth {
		endX = layerWidth - 1
	}
	endY := y + rad
	if endY >= layerHeight {
		endY = layerHeight - 1
	}

	for wy := startY; wy <= endY; wy++ {
		for wx := startX; wx <= endX; wx++ {
			if crosshair && (wx == x || wy == y) {
				pix[wy*layerWidth+wx] = color
			} else {
				pix[wy*layerWidth+wx] = 0
			}
		}
	}
}
