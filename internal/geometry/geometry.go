// Package geometry tracks the logical layout of attached outputs and derives
// the global pointer space from it.
//
// The compositor describes each output with a pending geometry that is only
// promoted once a configure cycle completes with nonzero values. The pointer
// space is the bounding box of all confirmed outputs; layouts where the
// confirmed outputs do not form one connected group are rejected because the
// cursor path algorithm cannot cross a gap.
package geometry

import (
	"errors"
	"fmt"
)

// MaxOutputs bounds the number of tracked displays. Slots are fixed so the
// hot paths never allocate.
const MaxOutputs = 128

// ErrLayoutGap reports a confirmed layout whose outputs do not all touch.
var ErrLayoutGap = errors.New("multiple screens are attached and gaps are present between them")

// Rect is an output geometry in compositor-global logical coordinates.
type Rect struct {
	X, Y int32
	W, H int32
}

// Zero reports whether every field is zero. The compositor sends such
// placeholder geometries before an output is fully configured.
func (r Rect) Zero() bool {
	return r.X == 0 && r.Y == 0 && r.W == 0 && r.H == 0
}

// Contains reports whether the point lies inside the rectangle. Edges at
// X+W / Y+H are exclusive.
func (r Rect) Contains(x, y int32) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Touches reports whether two outputs touch or overlap. Growing one
// rectangle by a pixel in every direction turns edge and corner contact
// into overlap, so a single intersection test covers all cases.
func (r Rect) Touches(o Rect) bool {
	g := Rect{X: r.X - 1, Y: r.Y - 1, W: r.W + 2, H: r.H + 2}
	return g.X < o.X+o.W && o.X < g.X+g.W && g.Y < o.Y+o.H && o.Y < g.Y+g.H
}

// Coord is a point in no particular coordinate space.
type Coord struct {
	X, Y int32
}

// LocalCoord is a point in screen-local space together with the output it
// lies on. Valid is false when the source point fell into a void.
type LocalCoord struct {
	Output int
	X, Y   int32
	Valid  bool
}

// Space holds pending and confirmed output geometries plus the derived
// global pointer space.
type Space struct {
	pending   [MaxOutputs]Rect
	confirmed [MaxOutputs]Rect
	active    [MaxOutputs]bool

	// Bounding box of the confirmed outputs. Min is the pointer-space
	// origin; Max is the maximum lower-right corner, both in global
	// coordinates.
	min, max Coord
	valid    bool
}

func NewSpace() *Space {
	return &Space{}
}

// StagePosition records a logical_position update for an output's pending
// geometry.
func (s *Space) StagePosition(idx int, x, y int32) {
	if idx < 0 || idx >= MaxOutputs {
		return
	}
	s.pending[idx].X = x
	s.pending[idx].Y = y
}

// StageSize records a logical_size update for an output's pending geometry.
func (s *Space) StageSize(idx int, w, h int32) {
	if idx < 0 || idx >= MaxOutputs {
		return
	}
	s.pending[idx].W = w
	s.pending[idx].H = h
}

// Commit promotes an output's pending geometry at the end of a configure
// cycle. All-zero geometries are discarded; the compositor sends those while
// an output is still settling. Returns whether the promotion happened.
func (s *Space) Commit(idx int) (bool, error) {
	if idx < 0 || idx >= MaxOutputs {
		return false, nil
	}
	if s.pending[idx].Zero() {
		return false, nil
	}
	s.confirmed[idx] = s.pending[idx]
	s.active[idx] = true
	return true, s.Recalc()
}

// Remove drops an output on hotplug-out and recomputes the global space.
func (s *Space) Remove(idx int) error {
	if idx < 0 || idx >= MaxOutputs || !s.active[idx] {
		return nil
	}
	s.active[idx] = false
	s.confirmed[idx] = Rect{}
	s.pending[idx] = Rect{}
	return s.Recalc()
}

// Output returns the confirmed geometry for a slot.
func (s *Space) Output(idx int) (Rect, bool) {
	if idx < 0 || idx >= MaxOutputs || !s.active[idx] {
		return Rect{}, false
	}
	return s.confirmed[idx], true
}

// ConfirmedCount returns the number of outputs with confirmed geometry.
func (s *Space) ConfirmedCount() int {
	n := 0
	for _, a := range s.active {
		if a {
			n++
		}
	}
	return n
}

// Bounds returns the pointer-space bounding box. ok is false until at least
// one output has been confirmed.
func (s *Space) Bounds() (min, max Coord, ok bool) {
	return s.min, s.max, s.valid
}

// Recalc recomputes the bounding box of the confirmed outputs and verifies
// that they form a single connected group. Outputs are connected when they
// touch or overlap at edges or corners. A disconnected layout returns
// ErrLayoutGap; the caller treats that as fatal.
func (s *Space) Recalc() error {
	var screens []int
	min := Coord{X: int32(1<<31 - 1), Y: int32(1<<31 - 1)}
	max := Coord{X: int32(-1 << 31), Y: int32(-1 << 31)}

	for i := 0; i < MaxOutputs; i++ {
		if !s.active[i] {
			continue
		}
		r := s.confirmed[i]
		screens = append(screens, i)
		if r.X < min.X {
			min.X = r.X
		}
		if r.Y < min.Y {
			min.Y = r.Y
		}
		if r.X+r.W > max.X {
			max.X = r.X + r.W
		}
		if r.Y+r.H > max.Y {
			max.Y = r.Y + r.H
		}
	}

	if len(screens) == 0 || min.X > max.X || min.Y > max.Y {
		// No usable screen state yet; keep whatever we had.
		return nil
	}

	// Flood-fill the touches-or-overlaps graph from the first confirmed
	// output.
	reached := map[int]bool{screens[0]: true}
	frontier := []int{screens[0]}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, cand := range screens {
			if reached[cand] {
				continue
			}
			if s.confirmed[cur].Touches(s.confirmed[cand]) {
				reached[cand] = true
				frontier = append(frontier, cand)
			}
		}
	}
	if len(reached) != len(screens) {
		return fmt.Errorf("%w: %d of %d screens reachable", ErrLayoutGap, len(reached), len(screens))
	}

	s.min = min
	s.max = max
	s.valid = true
	return nil
}

// AbsToLocal converts a global point to screen-local coordinates by linear
// scan of the confirmed outputs. The result is invalid when the point lies
// in a void.
func (s *Space) AbsToLocal(x, y int32) LocalCoord {
	for i := 0; i < MaxOutputs; i++ {
		if !s.active[i] {
			continue
		}
		if s.confirmed[i].Contains(x, y) {
			return LocalCoord{
				Output: i,
				X:      x - s.confirmed[i].X,
				Y:      y - s.confirmed[i].Y,
				Valid:  true,
			}
		}
	}
	return LocalCoord{}
}

// LocalToAbs converts screen-local coordinates on an output to global
// coordinates. ok is false when the output is unknown or the point lies
// outside it.
func (s *Space) LocalToAbs(x, y int32, idx int) (Coord, bool) {
	if idx < 0 || idx >= MaxOutputs || !s.active[idx] {
		return Coord{X: -1, Y: -1}, false
	}
	r := s.confirmed[idx]
	if x < 0 || y < 0 || x >= r.W || y >= r.H {
		return Coord{X: -1, Y: -1}, false
	}
	return Coord{X: r.X + x, Y: r.Y + y}, true
}
