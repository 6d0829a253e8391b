package bitstate

import (
	"iter"
	"math/bits"
)

const (
	// MaxItems is the number of addressable items in a register. Bit 63 of
	// every word stays clear so serialized words fit a signed 64-bit integer.
	MaxItems = 63
	// MaxIndex is the highest valid item index.
	MaxIndex = MaxItems - 1

	fullMask Mask = 1<<MaxItems - 1
)

// Mask is a set of item indices packed one bit per index.
type Mask uint64

// Bit returns the mask holding only index i, or zero when i is out of range.
func Bit(i int) Mask {
	if !validIndex(i) {
		return 0
	}
	return 1 << uint(i)
}

// Span returns the mask covering [first, last] inclusive. Bounds are clamped
// to the valid index range and an inverted span is empty.
func Span(first, last int) Mask {
	if first < 0 {
		first = 0
	}
	if last > MaxIndex {
		last = MaxIndex
	}
	if first > last {
		return 0
	}
	width := uint(last - first + 1)
	return (1<<width - 1) << uint(first)
}

// Has reports whether index i is in the mask.
func (m Mask) Has(i int) bool {
	return m&Bit(i) != 0
}

// Count returns the number of indices in the mask.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Lowest returns the smallest index in the mask, or -1 when empty.
func (m Mask) Lowest() int {
	if m == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(m))
}

// Indices yields the indices in the mask in ascending order.
func (m Mask) Indices() iter.Seq[int] {
	return func(yield func(int) bool) {
		rest := m & fullMask
		for rest != 0 {
			idx := bits.TrailingZeros64(uint64(rest))
			if !yield(idx) {
				return
			}
			rest &= rest - 1
		}
	}
}

// Slice returns the indices in the mask as a slice.
func (m Mask) Slice() []int {
	out := make([]int, 0, m.Count())
	for idx := range m.Indices() {
		out = append(out, idx)
	}
	return out
}

func validIndex(i int) bool {
	return i >= 0 && i <= MaxIndex
}

// radioRun returns the contiguous radio run containing i, walking outward
// from i in both directions while the group bit stays set.
func radioRun(radio Mask, i int) Mask {
	if !radio.Has(i) {
		return 0
	}
	run := Bit(i)
	for j := i - 1; j >= 0 && radio.Has(j); j-- {
		run |= Bit(j)
	}
	for j := i + 1; j <= MaxIndex && radio.Has(j); j++ {
		run |= Bit(j)
	}
	return run
}

// setWithRadio returns current with i set and every other member of i's
// radio run cleared.
func setWithRadio(current, radio Mask, i int) Mask {
	return current&^radioRun(radio, i) | Bit(i)
}
