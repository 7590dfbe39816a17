// Package memory describes a process' address space and walks it.
//
// The package does not touch memory on its own. Everything goes through
// four host primitives, which callers provide:
//	- ModuleResolver resolves a module name to its base address and
//	  image size
//	- RegionQuerier reports the region (base, size, protection)
//	  containing an address
//	- Reader reads n bytes starting at an address
//	- Writer writes bytes at an address
//
// Space combines all four. The process package implements Space for
// live Linux and Windows processes, and Arena implements it over plain
// Go buffers so that code built on top of this package can be exercised
// without a target process.
//
// Walking a module
//
// EnumerateMonitoredRegions (and the configurable Enumerator) walks a
// module's image from its base address in strides of the size reported
// by each region query, keeping only regions whose protection is
// execute-read or read-only. Those pages are not expected to change
// at runtime, which makes them worth watching.
package memory
