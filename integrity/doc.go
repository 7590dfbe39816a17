// Package integrity watches the read-only and execute-read regions of
// a module for runtime modification.
//
// A Monitor captures an immutable Snapshot of every monitored region,
// then repeatedly re-fingerprints the live regions. When a fingerprint
// no longer matches, the region is diffed byte by byte against its
// snapshot and an apply/undo pair of patch scripts is synthesized
// from the changes. Snapshots are never updated, so a modification
// that persists is reported on every sweep until the original bytes
// come back.
package integrity
