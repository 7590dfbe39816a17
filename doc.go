// Package pagewatch detects runtime modifications of the read-only and
// executable pages of a module loaded in a process.
//
// The module's regions are enumerated and captured once. They are then
// re-verified by fingerprint on every sweep. When a fingerprint no
// longer matches, the region is diffed byte by byte and a pair of
// scripts is synthesized: one that re-applies the modification and one
// that undoes it.
//
// APIs are separated into subpackages, and documented accordingly:
//
//   - checksum: region fingerprints
//   - memory: address space capabilities, region enumeration and an
//     in-memory address space for tests
//   - integrity: snapshots and the monitor
//   - diff: byte-level comparison
//   - patchscript: script synthesis, rendering, parsing and replay
//   - asmkit: instruction decoding for annotations
//   - process: Linux and Windows process attachment
//
// For scripting convenience, "OrExit" functions and methods are provided.
// Any errors encountered by these functions are treated as fatal. In such
// cases, an exit handler function is invoked.
package pagewatch
