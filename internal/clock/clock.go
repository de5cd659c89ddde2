// Package clock provides the monotonic millisecond timebase used for
// scheduling buffered input events.
//
// Release timestamps travel to the compositor as 32-bit milliseconds, so the
// clock is rebased to the moment it is created. A session would have to run
// for roughly 49 days before the wire representation wraps; when that
// happens the daemon shuts down instead of emitting wrapped timestamps.
package clock

import (
	"errors"
	"math"
	"time"
)

// ErrWireOverflow is returned when a timestamp no longer fits in the 32-bit
// wire representation.
var ErrWireOverflow = errors.New("timestamp exceeds 32-bit wire range")

// Clock produces monotonically non-decreasing millisecond timestamps. The
// epoch is the moment New was called.
type Clock struct {
	start time.Time
}

func New() *Clock {
	return &Clock{start: time.Now()}
}

// NowMS returns milliseconds elapsed since the clock was created. The value
// never decreases; Go's time package carries a monotonic reading.
func (c *Clock) NowMS() int64 {
	return time.Since(c.start).Milliseconds()
}

// WireTime narrows a scheduled timestamp to the 32-bit form the virtual
// input protocols carry. Callers treat ErrWireOverflow as a request to shut
// down so the supervisor can restart the process with a fresh epoch.
func WireTime(ts int64) (uint32, error) {
	if ts < 0 || ts > math.MaxUint32 {
		return 0, ErrWireOverflow
	}
	return uint32(ts), nil
}
