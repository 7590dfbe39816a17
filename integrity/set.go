package integrity

import (
	"fmt"
	"log"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

// Set is an ordered collection of snapshots with disjoint, ascending
// regions. It is built once and never modified.
type Set struct {
	snapshots []*Snapshot
}

// BuildSet captures each region in order. The regions must not
// overlap and must be sorted by base address.
func BuildSet(reader memory.Reader, regions []memory.Region, optLogger *log.Logger) (*Set, error) {
	set := &Set{
		snapshots: make([]*Snapshot, 0, len(regions)),
	}

	for i, region := range regions {
		if i > 0 && regions[i-1].End() > region.Base {
			return nil, fmt.Errorf("region %s is not after region %s", region, regions[i-1])
		}

		s, err := Capture(reader, region, optLogger)
		if err != nil {
			return nil, err
		}

		set.snapshots = append(set.snapshots, s)
	}

	return set, nil
}

// Len returns the number of snapshots.
func (o *Set) Len() int {
	return len(o.snapshots)
}

// At returns the i-th snapshot.
func (o *Set) At(i int) *Snapshot {
	return o.snapshots[i]
}

// Snapshots returns the snapshots in order. The returned slice is
// a copy; the snapshots themselves are immutable.
func (o *Set) Snapshots() []*Snapshot {
	return append([]*Snapshot(nil), o.snapshots...)
}

// Size returns the total number of captured bytes.
func (o *Set) Size() uint64 {
	var total uint64
	for _, s := range o.snapshots {
		total += uint64(s.Len())
	}
	return total
}
