package combo

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("default combo", func(t *testing.T) {
		c, err := Parse(DefaultSpec)
		require.NoError(t, err)
		assert.Equal(t, 3, c.Slots())
	})

	t.Run("aliases within a slot", func(t *testing.T) {
		c, err := Parse("KEY_LEFTCTRL|KEY_RIGHTCTRL,KEY_Q")
		require.NoError(t, err)
		assert.Equal(t, 2, c.Slots())
	})

	t.Run("whitespace is tolerated", func(t *testing.T) {
		_, err := Parse(" KEY_LEFTSHIFT , KEY_ESC ")
		require.NoError(t, err)
	})

	t.Run("unknown key name fails", func(t *testing.T) {
		_, err := Parse("KEY_LEFTSHIFT,KEY_BOGUS")
		assert.Error(t, err)
	})

	t.Run("empty slot fails", func(t *testing.T) {
		_, err := Parse("KEY_LEFTSHIFT,,KEY_ESC")
		assert.Error(t, err)
	})
}

func TestTracker(t *testing.T) {
	newTracker := func(t *testing.T, spec string) *Tracker {
		t.Helper()
		c, err := Parse(spec)
		require.NoError(t, err)
		return NewTracker(c)
	}

	t.Run("fires when all slots are held", func(t *testing.T) {
		tr := newTracker(t, DefaultSpec)
		assert.False(t, tr.HandleKey(evdev.KEY_LEFTSHIFT, true))
		assert.False(t, tr.HandleKey(evdev.KEY_RIGHTSHIFT, true))
		assert.True(t, tr.HandleKey(evdev.KEY_ESC, true))
	})

	t.Run("final key alone does not fire", func(t *testing.T) {
		tr := newTracker(t, DefaultSpec)
		assert.False(t, tr.HandleKey(evdev.KEY_ESC, true))
	})

	t.Run("release resets a slot", func(t *testing.T) {
		tr := newTracker(t, DefaultSpec)
		tr.HandleKey(evdev.KEY_LEFTSHIFT, true)
		tr.HandleKey(evdev.KEY_RIGHTSHIFT, true)
		tr.HandleKey(evdev.KEY_LEFTSHIFT, false)
		assert.False(t, tr.HandleKey(evdev.KEY_ESC, true))

		// Pressing the released slot again completes the chord.
		assert.False(t, tr.HandleKey(evdev.KEY_ESC, false))
		tr.HandleKey(evdev.KEY_LEFTSHIFT, true)
		assert.True(t, tr.HandleKey(evdev.KEY_ESC, true))
	})

	t.Run("release never fires the chord", func(t *testing.T) {
		tr := newTracker(t, "KEY_A,KEY_B")
		tr.HandleKey(evdev.KEY_A, true)
		tr.HandleKey(evdev.KEY_B, true) // fires here
		assert.False(t, tr.HandleKey(evdev.KEY_C, false))
	})

	t.Run("any alias satisfies its slot", func(t *testing.T) {
		tr := newTracker(t, "KEY_LEFTCTRL|KEY_RIGHTCTRL,KEY_Q")
		tr.HandleKey(evdev.KEY_RIGHTCTRL, true)
		assert.True(t, tr.HandleKey(evdev.KEY_Q, true))
	})

	t.Run("unrelated keys do not disturb tracking", func(t *testing.T) {
		tr := newTracker(t, DefaultSpec)
		tr.HandleKey(evdev.KEY_LEFTSHIFT, true)
		tr.HandleKey(evdev.KEY_RIGHTSHIFT, true)
		tr.HandleKey(evdev.KEY_SPACE, true)
		tr.HandleKey(evdev.KEY_SPACE, false)
		assert.True(t, tr.HandleKey(evdev.KEY_ESC, true))
	})
}
