// Package diff compares a captured copy of a region with its live bytes.
package diff

import (
	"fmt"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

// Change is a single modified byte.
type Change struct {
	Address memory.Address
	Old     byte
	New     byte
}

func (o Change) String() string {
	return fmt.Sprintf("%s: 0x%02x -> 0x%02x", o.Address.HexString(), o.Old, o.New)
}

// Bytes compares original and live, which both start at base, and
// returns one Change per differing byte in ascending address order.
// Adjacent changes are not merged. The result is empty if and only
// if the buffers are identical.
//
// A *memory.RegionSizeMismatchError is returned if the buffers have
// different lengths.
func Bytes(base memory.Address, original []byte, live []byte) ([]Change, error) {
	if len(original) != len(live) {
		return nil, &memory.RegionSizeMismatchError{
			Address: base,
			Want:    uint64(len(original)),
			Got:     uint64(len(live)),
		}
	}

	var changes []Change

	for i := range original {
		if original[i] == live[i] {
			continue
		}

		changes = append(changes, Change{
			Address: base + memory.Address(i),
			Old:     original[i],
			New:     live[i],
		})
	}

	return changes, nil
}

// ApplyNew writes each change's new value into buf, which starts at base.
func ApplyNew(buf []byte, base memory.Address, changes []Change) error {
	return apply(buf, base, changes, func(c Change) byte { return c.New })
}

// ApplyOld writes each change's old value into buf, which starts at base.
func ApplyOld(buf []byte, base memory.Address, changes []Change) error {
	return apply(buf, base, changes, func(c Change) byte { return c.Old })
}

func apply(buf []byte, base memory.Address, changes []Change, valueFn func(Change) byte) error {
	for _, c := range changes {
		if c.Address < base || uint64(c.Address-base) >= uint64(len(buf)) {
			return fmt.Errorf("change at %s is outside of buffer at %s (0x%x bytes)",
				c.Address.HexString(), base.HexString(), len(buf))
		}

		buf[c.Address-base] = valueFn(c)
	}

	return nil
}

// Offsets returns each change's offset relative to base.
func Offsets(base memory.Address, changes []Change) []int {
	offsets := make([]int, len(changes))
	for i, c := range changes {
		offsets[i] = int(c.Address - base)
	}
	return offsets
}
