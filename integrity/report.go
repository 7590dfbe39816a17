package integrity

import (
	"fmt"

	"gitlab.com/stephen-fox/pagewatch/checksum"
	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
)

// Report describes one region whose live fingerprint no longer
// matches its snapshot.
type Report struct {
	// Sweep is the number of the sweep that produced the report,
	// starting at 1.
	Sweep uint64

	Region   memory.Region
	Expected checksum.Fingerprint
	Actual   checksum.Fingerprint

	// Changes lists every modified byte in ascending address order.
	Changes []diff.Change

	// Apply and Undo are named patchscript.DefaultName and
	// patchscript.UndoPrefix + patchscript.DefaultName.
	Apply patchscript.Script
	Undo  patchscript.Script
}

// Named returns copies of the Apply and Undo scripts renamed to name
// and patchscript.UndoPrefix + name. An empty name keeps the default.
func (o Report) Named(name string) (patchscript.Script, patchscript.Script) {
	apply := o.Apply
	undo := o.Undo

	apply.Name = patchscript.Name(name)
	undo.Name = patchscript.UndoPrefix + apply.Name

	return apply, undo
}

func (o Report) String() string {
	return fmt.Sprintf("page change: %s | changed checksum: %s | expected checksum: %s | %d byte(s) modified",
		o.Region.Base.HexString(), o.Actual, o.Expected, len(o.Changes))
}

// SweepResult is the outcome of one sweep over every snapshot.
type SweepResult struct {
	Number  uint64
	Reports []Report

	// Errors holds the per-region errors of the sweep. Each one is
	// a *memory.QueryError, *memory.ReadError or
	// *memory.RegionSizeMismatchError.
	Errors []error

	// Clean holds the base of each region whose fingerprint matched
	// its snapshot, in ascending order.
	Clean []memory.Address
}
