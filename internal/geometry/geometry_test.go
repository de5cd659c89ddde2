package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirm(t *testing.T, s *Space, idx int, r Rect) {
	t.Helper()
	s.StagePosition(idx, r.X, r.Y)
	s.StageSize(idx, r.W, r.H)
	promoted, err := s.Commit(idx)
	require.NoError(t, err)
	require.True(t, promoted)
}

func TestCommit(t *testing.T) {
	t.Run("discards all-zero geometry", func(t *testing.T) {
		s := NewSpace()
		promoted, err := s.Commit(0)
		require.NoError(t, err)
		assert.False(t, promoted)
		assert.Equal(t, 0, s.ConfirmedCount())
	})

	t.Run("promotes nonzero geometry", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 1920, H: 1080})

		min, max, ok := s.Bounds()
		require.True(t, ok)
		assert.Equal(t, Coord{0, 0}, min)
		assert.Equal(t, Coord{1920, 1080}, max)
	})

	t.Run("ignores out-of-range slots", func(t *testing.T) {
		s := NewSpace()
		s.StagePosition(MaxOutputs, 1, 1)
		s.StageSize(-1, 5, 5)
		promoted, err := s.Commit(MaxOutputs + 3)
		require.NoError(t, err)
		assert.False(t, promoted)
	})
}

func TestRecalc(t *testing.T) {
	t.Run("bounding box spans side-by-side outputs", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 1000, H: 1000})
		confirm(t, s, 1, Rect{X: 1000, Y: 0, W: 1000, H: 1000})

		min, max, ok := s.Bounds()
		require.True(t, ok)
		assert.Equal(t, Coord{0, 0}, min)
		assert.Equal(t, Coord{2000, 1000}, max)
	})

	t.Run("origin follows negative coordinates", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: -1920, Y: 0, W: 1920, H: 1080})
		confirm(t, s, 1, Rect{X: 0, Y: 0, W: 1920, H: 1080})

		min, max, ok := s.Bounds()
		require.True(t, ok)
		assert.Equal(t, Coord{-1920, 0}, min)
		assert.Equal(t, Coord{1920, 1080}, max)
	})

	t.Run("detects gapped layout", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 1000, H: 1000})
		s.StagePosition(1, 1002, 0)
		s.StageSize(1, 1000, 1000)
		_, err := s.Commit(1)
		assert.True(t, errors.Is(err, ErrLayoutGap))
	})

	t.Run("one-pixel corner touch counts as connected", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 100, H: 100})
		confirm(t, s, 1, Rect{X: 100, Y: 100, W: 100, H: 100})
	})

	t.Run("ragged edge overlap counts as connected", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 1000, H: 1000})
		confirm(t, s, 1, Rect{X: 1000, Y: 500, W: 1000, H: 500})
	})

	t.Run("removal can disconnect a layout", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 100, H: 100})
		confirm(t, s, 1, Rect{X: 100, Y: 0, W: 100, H: 100})
		confirm(t, s, 2, Rect{X: 200, Y: 0, W: 100, H: 100})

		err := s.Remove(1)
		assert.True(t, errors.Is(err, ErrLayoutGap))
	})

	t.Run("removal of an edge output shrinks the box", func(t *testing.T) {
		s := NewSpace()
		confirm(t, s, 0, Rect{X: 0, Y: 0, W: 100, H: 100})
		confirm(t, s, 1, Rect{X: 100, Y: 0, W: 100, H: 100})

		require.NoError(t, s.Remove(1))
		min, max, ok := s.Bounds()
		require.True(t, ok)
		assert.Equal(t, Coord{0, 0}, min)
		assert.Equal(t, Coord{100, 100}, max)
	})
}

func TestCoordinateTransforms(t *testing.T) {
	s := NewSpace()
	confirm(t, s, 0, Rect{X: 0, Y: 0, W: 1000, H: 1000})
	confirm(t, s, 3, Rect{X: 1000, Y: 500, W: 1000, H: 500})

	t.Run("abs to local on first output", func(t *testing.T) {
		lc := s.AbsToLocal(10, 20)
		assert.Equal(t, LocalCoord{Output: 0, X: 10, Y: 20, Valid: true}, lc)
	})

	t.Run("abs to local on offset output", func(t *testing.T) {
		lc := s.AbsToLocal(1500, 700)
		assert.Equal(t, LocalCoord{Output: 3, X: 500, Y: 200, Valid: true}, lc)
	})

	t.Run("void point is invalid", func(t *testing.T) {
		lc := s.AbsToLocal(1500, 100)
		assert.False(t, lc.Valid)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, pt := range []Coord{{0, 0}, {999, 999}, {123, 456}} {
			abs, ok := s.LocalToAbs(pt.X, pt.Y, 0)
			require.True(t, ok)
			lc := s.AbsToLocal(abs.X, abs.Y)
			assert.Equal(t, LocalCoord{Output: 0, X: pt.X, Y: pt.Y, Valid: true}, lc)
		}
	})

	t.Run("local to abs rejects out-of-bounds", func(t *testing.T) {
		_, ok := s.LocalToAbs(1000, 0, 0)
		assert.False(t, ok)
		_, ok = s.LocalToAbs(0, 0, 7)
		assert.False(t, ok)
	})
}
