// Package random draws uniform integers from the kernel CSPRNG.
//
// Delay sampling must not be predictable, so math/rand is off the table; the
// reader behind crypto/rand is opened once and held for the process
// lifetime.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Source draws random integers from a cryptographic entropy stream.
type Source struct {
	r io.Reader
}

func New() *Source {
	return &Source{r: rand.Reader}
}

// NewFromReader is used by tests to substitute a deterministic stream.
func NewFromReader(r io.Reader) *Source {
	return &Source{r: r}
}

// Uniform returns an integer uniformly distributed on [lo, hi] inclusive.
// Invalid intervals degrade instead of failing: lo >= hi yields hi, and
// negative bounds yield 0. Biased draws are rejected so every value in the
// interval is equally likely.
func (s *Source) Uniform(lo, hi int64) (int64, error) {
	if lo >= hi {
		return hi, nil
	}
	if lo < 0 || hi < 0 {
		return 0, nil
	}

	// lo and hi are both non-negative int64 here, so the range fits uint64.
	span := uint64(hi-lo) + 1
	limit := math.MaxUint64 - math.MaxUint64%span

	var buf [8]byte
	for {
		if _, err := io.ReadFull(s.r, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read entropy: %w", err)
		}
		raw := binary.LittleEndian.Uint64(buf[:])
		if raw >= limit {
			continue
		}
		return lo + int64(raw%span), nil
	}
}
