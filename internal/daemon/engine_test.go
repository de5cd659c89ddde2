package daemon

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wayveil/internal/clock"
	"github.com/bnema/wayveil/internal/combo"
	"github.com/bnema/wayveil/internal/config"
	"github.com/bnema/wayveil/internal/cursor"
	"github.com/bnema/wayveil/internal/geometry"
	"github.com/bnema/wayveil/internal/input"
	"github.com/bnema/wayveil/internal/random"
	"github.com/bnema/wayveil/internal/scheduler"
)

// testEngine builds an engine without a compositor connection: enough for
// the input-to-queue path.
func testEngine(t *testing.T, maxDelay int64, rects ...geometry.Rect) *Engine {
	t.Helper()
	space := geometry.NewSpace()
	for i, r := range rects {
		space.StagePosition(i, r.X, r.Y)
		space.StageSize(i, r.W, r.H)
		promoted, err := space.Commit(i)
		require.NoError(t, err)
		require.True(t, promoted)
	}

	c, err := combo.Parse(combo.DefaultSpec)
	require.NoError(t, err)

	e := &Engine{
		cfg:   &config.Config{Input: config.InputConfig{MaxDelayMS: maxDelay}},
		clk:   clock.New(),
		rng:   random.New(),
		space: space,
		esc:   combo.NewTracker(c),
	}
	e.cur = cursor.NewEngine(space)
	e.sched = scheduler.New(e.clk, e.rng, maxDelay)
	return e
}

func key(code evdev.EvCode, pressed bool) input.Event {
	return input.Event{Kind: input.KindKey, Code: code, Pressed: pressed}
}

func TestHandleInputEscape(t *testing.T) {
	t.Run("full chord shuts down on the final press", func(t *testing.T) {
		e := testEngine(t, 100, geometry.Rect{W: 1920, H: 1080})

		require.NoError(t, e.handleInput(key(evdev.KEY_LEFTSHIFT, true)))
		require.NoError(t, e.handleInput(key(evdev.KEY_RIGHTSHIFT, true)))
		err := e.handleInput(key(evdev.KEY_ESC, true))
		assert.ErrorIs(t, err, errEscape)
	})

	t.Run("escape alone keeps running", func(t *testing.T) {
		e := testEngine(t, 100, geometry.Rect{W: 1920, H: 1080})
		require.NoError(t, e.handleInput(key(evdev.KEY_ESC, true)))
	})

	t.Run("released shift resets the chord", func(t *testing.T) {
		e := testEngine(t, 100, geometry.Rect{W: 1920, H: 1080})
		require.NoError(t, e.handleInput(key(evdev.KEY_LEFTSHIFT, true)))
		require.NoError(t, e.handleInput(key(evdev.KEY_RIGHTSHIFT, true)))
		require.NoError(t, e.handleInput(key(evdev.KEY_LEFTSHIFT, false)))
		require.NoError(t, e.handleInput(key(evdev.KEY_ESC, true)))
	})

	t.Run("chord keys are still buffered for release", func(t *testing.T) {
		e := testEngine(t, 100, geometry.Rect{W: 1920, H: 1080})
		require.NoError(t, e.handleInput(key(evdev.KEY_LEFTSHIFT, true)))
		assert.Equal(t, 1, e.sched.Len())
	})
}

func TestHandleInputMotion(t *testing.T) {
	t.Run("rapid motion coalesces to one queued move", func(t *testing.T) {
		e := testEngine(t, 100,
			geometry.Rect{X: 0, Y: 0, W: 1000, H: 1000},
			geometry.Rect{X: 1000, Y: 0, W: 1000, H: 1000},
		)

		// Absolute stream at (10,10), (20,20), (30,30): with nothing
		// released in between, exactly one pointer move remains queued.
		for _, p := range [][2]float64{{10, 10}, {20, 20}, {30, 30}} {
			require.NoError(t, e.handleInput(input.Event{
				Kind: input.KindMotionAbs,
				AbsX: p[0] / 2000,
				AbsY: p[1] / 1000,
			}))
		}

		require.Equal(t, 1, e.sched.Len())
		move := e.sched.Pending()[0].(*scheduler.PointerMove)
		assert.Equal(t, int32(30), move.X)
		assert.Equal(t, int32(30), move.Y)
	})

	t.Run("relative motion through a void settles on screen", func(t *testing.T) {
		e := testEngine(t, 100,
			geometry.Rect{X: 0, Y: 0, W: 1000, H: 1000},
			geometry.Rect{X: 1000, Y: 500, W: 1000, H: 500},
		)
		e.cur.X, e.cur.Y = 500, 100
		e.cur.PrevX, e.cur.PrevY = 500, 100

		require.NoError(t, e.handleInput(input.Event{Kind: input.KindMotion, DX: 600, DY: 600}))

		assert.Equal(t, 1100.0, e.cur.X)
		assert.Equal(t, 700.0, e.cur.Y)
		lc := e.space.AbsToLocal(int32(e.cur.X), int32(e.cur.Y))
		assert.True(t, lc.Valid)
		assert.Equal(t, 1, lc.Output)

		move := e.sched.Pending()[0].(*scheduler.PointerMove)
		assert.Equal(t, int32(1100), move.X)
		assert.Equal(t, int32(700), move.Y)
	})

	t.Run("a key between moves prevents fusion", func(t *testing.T) {
		e := testEngine(t, 100, geometry.Rect{W: 1000, H: 1000})

		require.NoError(t, e.handleInput(input.Event{Kind: input.KindMotion, DX: 10, DY: 10}))
		require.NoError(t, e.handleInput(key(evdev.KEY_A, true)))
		require.NoError(t, e.handleInput(input.Event{Kind: input.KindMotion, DX: 10, DY: 10}))

		assert.Equal(t, 3, e.sched.Len())
	})
}
