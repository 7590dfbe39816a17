package memory

import "fmt"

// Address is a virtual address in a target address space.
//
// It is a plain number rather than a pointer: nothing in this package
// dereferences it.
type Address uint64

func (o Address) String() string {
	return o.HexString()
}

// HexString returns the address as a "0x"-prefixed hex string.
func (o Address) HexString() string {
	return fmt.Sprintf("0x%x", uint64(o))
}

// Add returns o+n and whether the addition overflowed.
func (o Address) Add(n uint64) (Address, bool) {
	sum := o + Address(n)
	return sum, sum < o
}
