// Package combo implements the escape key chord that shuts the daemon down.
//
// A combo is a comma-separated list of slots; each slot is a |-separated set
// of evdev key names that count as aliases for one another. The chord fires
// when every slot has at least one alias held down at the same time. With
// all physical input exclusively grabbed, this chord is the only way left to
// stop the daemon from the keyboard it is hiding.
package combo

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// DefaultSpec is both shift keys plus escape.
const DefaultSpec = "KEY_LEFTSHIFT,KEY_RIGHTSHIFT,KEY_ESC"

// Combo is a parsed escape chord: a conjunction of alias slots.
type Combo struct {
	slots [][]evdev.EvCode
	spec  string
}

// Parse builds a combo from its textual form. Key names are the evdev
// KEY_*/BTN_* identifiers; unknown names are an error.
func Parse(spec string) (*Combo, error) {
	c := &Combo{spec: spec}
	for _, rawSlot := range strings.Split(spec, ",") {
		rawSlot = strings.TrimSpace(rawSlot)
		if rawSlot == "" {
			return nil, fmt.Errorf("empty slot in key combo %q", spec)
		}
		var slot []evdev.EvCode
		for _, rawKey := range strings.Split(rawSlot, "|") {
			rawKey = strings.TrimSpace(rawKey)
			code, ok := evdev.KEYFromString[rawKey]
			if !ok {
				return nil, fmt.Errorf("unrecognized key name %q in key combo %q", rawKey, spec)
			}
			slot = append(slot, code)
		}
		c.slots = append(c.slots, slot)
	}
	return c, nil
}

// String returns the combo as it was parsed.
func (c *Combo) String() string { return c.spec }

// Slots returns the number of slots in the chord.
func (c *Combo) Slots() int { return len(c.slots) }

// Tracker matches live key state against a combo.
type Tracker struct {
	combo   *Combo
	pressed map[evdev.EvCode]bool
}

func NewTracker(c *Combo) *Tracker {
	return &Tracker{
		combo:   c,
		pressed: make(map[evdev.EvCode]bool),
	}
}

// HandleKey feeds one key edge into the tracker and reports whether the
// chord is complete. Completion is only ever reported on a press: releasing
// a key can never fire the chord, it can only reset slots.
func (t *Tracker) HandleKey(code evdev.EvCode, pressed bool) bool {
	if pressed {
		t.pressed[code] = true
		return t.active()
	}
	delete(t.pressed, code)
	return false
}

// active reports whether every slot has at least one pressed alias.
func (t *Tracker) active() bool {
	for _, slot := range t.combo.slots {
		slotActive := false
		for _, code := range slot {
			if t.pressed[code] {
				slotActive = true
				break
			}
		}
		if !slotActive {
			return false
		}
	}
	return true
}
