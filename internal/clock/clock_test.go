package clock

import (
	"math"
	"testing"
	"time"
)

func TestNowMS(t *testing.T) {
	t.Run("starts near zero", func(t *testing.T) {
		c := New()
		now := c.NowMS()
		if now < 0 || now > 1000 {
			t.Errorf("fresh clock reported %d ms", now)
		}
	})

	t.Run("never decreases", func(t *testing.T) {
		c := New()
		prev := c.NowMS()
		for i := 0; i < 1000; i++ {
			now := c.NowMS()
			if now < prev {
				t.Fatalf("clock went backwards: %d -> %d", prev, now)
			}
			prev = now
		}
	})

	t.Run("advances with real time", func(t *testing.T) {
		c := New()
		before := c.NowMS()
		time.Sleep(20 * time.Millisecond)
		after := c.NowMS()
		if after-before < 15 {
			t.Errorf("expected ~20ms to elapse, got %d", after-before)
		}
	})
}

func TestWireTime(t *testing.T) {
	t.Run("passes through small values", func(t *testing.T) {
		v, err := WireTime(12345)
		if err != nil {
			t.Fatal(err)
		}
		if v != 12345 {
			t.Errorf("got %d", v)
		}
	})

	t.Run("accepts the 32-bit boundary", func(t *testing.T) {
		v, err := WireTime(math.MaxUint32)
		if err != nil {
			t.Fatal(err)
		}
		if v != math.MaxUint32 {
			t.Errorf("got %d", v)
		}
	})

	t.Run("rejects values past the boundary", func(t *testing.T) {
		if _, err := WireTime(math.MaxUint32 + 1); err != ErrWireOverflow {
			t.Errorf("expected ErrWireOverflow, got %v", err)
		}
	})

	t.Run("rejects negative values", func(t *testing.T) {
		if _, err := WireTime(-1); err != ErrWireOverflow {
			t.Errorf("expected ErrWireOverflow, got %v", err)
		}
	})
}
