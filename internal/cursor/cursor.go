// Package cursor moves the virtual pointer through the global space one
// pixel at a time.
//
// Jumping straight to a motion target could cross a void: a point inside the
// bounding box of all outputs that no output covers. The engine instead
// walks the line from the previous position and, when a step lands
// off-screen, retreats one pixel on a single axis and flattens the rest of
// the path against that axis, so the cursor glides along screen edges
// instead of stopping dead or tunneling.
package cursor

import (
	"errors"

	"github.com/bnema/wayveil/internal/geometry"
)

// ErrStuck means no single-axis retreat from an off-screen point was valid.
// That only happens when the tracked positions have gone inconsistent with
// the output layout; the caller restarts rather than guessing.
var ErrStuck = errors.New("cursor walk cannot return to a screen")

// TraverseLine walks pos pixels from start toward end and returns the
// resulting point. Stepping is done along the steeper dimension so every
// step moves exactly one pixel on the major axis; the minor axis advances by
// the accumulated slope, truncated. pos 0 is exactly start. The walk can
// overshoot end, and end itself is not guaranteed to be produced.
func TraverseLine(start, end geometry.Coord, pos int32) geometry.Coord {
	if pos == 0 {
		return start
	}
	var out geometry.Coord

	num := float64(end.Y) - float64(start.Y)
	denom := float64(start.X) - float64(end.X)
	if denom == 0 {
		// vertical line
		out.X = start.X
		if start.Y < end.Y {
			out.Y = start.Y + pos
		} else {
			out.Y = start.Y - pos
		}
		return out
	}

	slope := num / denom
	steep := slope
	if steep < 0 {
		steep = -steep
	}

	if steep < 1 {
		if start.X < end.X {
			out.X = start.X + pos
		} else {
			out.X = start.X - pos
		}
		if start.Y < end.Y {
			out.Y = start.Y + int32(float64(pos)*steep)
		} else {
			out.Y = start.Y - int32(float64(pos)*steep)
		}
	} else {
		if start.Y < end.Y {
			out.Y = start.Y + pos
		} else {
			out.Y = start.Y - pos
		}
		if start.X < end.X {
			out.X = start.X + int32(float64(pos)*(1/steep))
		} else {
			out.X = start.X - int32(float64(pos)*(1/steep))
		}
	}
	return out
}

// Engine tracks the virtual cursor in global coordinates.
type Engine struct {
	space *geometry.Space

	// Current and previous positions. Prev is updated before Cur on every
	// inbound motion event.
	X, Y         float64
	PrevX, PrevY float64
}

func NewEngine(space *geometry.Space) *Engine {
	return &Engine{space: space}
}

// MoveRelative applies a relative motion, clamping the target into the
// pointer-space bounding box.
func (e *Engine) MoveRelative(dx, dy float64) {
	min, max, ok := e.space.Bounds()
	if !ok {
		return
	}
	e.PrevX, e.PrevY = e.X, e.Y
	e.X += dx
	e.Y += dy
	if e.X < float64(min.X) {
		e.X = float64(min.X)
	}
	if e.Y < float64(min.Y) {
		e.Y = float64(min.Y)
	}
	if e.X > float64(max.X-1) {
		e.X = float64(max.X - 1)
	}
	if e.Y > float64(max.Y-1) {
		e.Y = float64(max.Y - 1)
	}
}

// MoveAbsolute applies a normalized absolute position, scaled against the
// maximum lower-right corner of the global space the way absolute devices
// are transformed.
func (e *Engine) MoveAbsolute(nx, ny float64) {
	_, max, ok := e.space.Bounds()
	if !ok {
		return
	}
	e.PrevX, e.PrevY = e.X, e.Y
	e.X = nx * float64(max.X)
	e.Y = ny * float64(max.Y)
}

// Relocate validates the path from the previous position to the current one
// and settles the cursor on its final, on-screen position. It returns the
// outputs hosting the previous and final positions so the caller can flag
// their overlays for redraw.
func (e *Engine) Relocate() (prevOut, curOut int, err error) {
	prev := e.space.AbsToLocal(int32(e.PrevX), int32(e.PrevY))
	if !prev.Valid {
		// The previous position points at a void or a detached screen.
		// Re-home everything to the first live output and start over.
		e.rehome()
		prev = e.space.AbsToLocal(int32(e.PrevX), int32(e.PrevY))
		if !prev.Valid {
			return 0, 0, ErrStuck
		}
	}

	start := geometry.Coord{X: int32(e.PrevX), Y: int32(e.PrevY)}
	end := geometry.Coord{X: int32(e.X), Y: int32(e.Y)}
	prevStep := start
	endXHit := false
	endYHit := false

	for i := int32(0); ; i++ {
		step := TraverseLine(start, end, i)
		if step.X == end.X {
			endXHit = true
		}
		if step.Y == end.Y {
			endYHit = true
		}

		if !e.space.AbsToLocal(step.X, step.Y).Valid {
			// Retreat one pixel on the axis we crossed the edge on and
			// flatten the remaining path against it.
			retreated := false
			switch {
			case prevStep.X < step.X && e.space.AbsToLocal(step.X-1, step.Y).Valid:
				start = geometry.Coord{X: step.X - 1, Y: step.Y}
				end.X = step.X - 1
				retreated = true
			case prevStep.X > step.X && e.space.AbsToLocal(step.X+1, step.Y).Valid:
				start = geometry.Coord{X: step.X + 1, Y: step.Y}
				end.X = step.X + 1
				retreated = true
			case prevStep.Y < step.Y && e.space.AbsToLocal(step.X, step.Y-1).Valid:
				start = geometry.Coord{X: step.X, Y: step.Y - 1}
				end.Y = step.Y - 1
				retreated = true
			case prevStep.Y > step.Y && e.space.AbsToLocal(step.X, step.Y+1).Valid:
				start = geometry.Coord{X: step.X, Y: step.Y + 1}
				end.Y = step.Y + 1
				retreated = true
			}
			if retreated {
				i = -1
				continue
			}
			if !endXHit || !endYHit {
				return 0, 0, ErrStuck
			}
		}

		if endXHit && endYHit {
			e.X = float64(end.X)
			e.Y = float64(end.Y)
			break
		}
		prevStep = step
	}

	cur := e.space.AbsToLocal(int32(e.X), int32(e.Y))
	if !cur.Valid {
		return 0, 0, ErrStuck
	}
	return prev.Output, cur.Output, nil
}

// rehome snaps both positions to the origin of the first confirmed output.
func (e *Engine) rehome() {
	for i := 0; i < geometry.MaxOutputs; i++ {
		if abs, ok := e.space.LocalToAbs(0, 0, i); ok {
			e.X, e.Y = float64(abs.X), float64(abs.Y)
			e.PrevX, e.PrevY = e.X, e.Y
			return
		}
	}
}
