package memory

import "log"

// ModuleResolver resolves a loaded module.
type ModuleResolver interface {
	// ResolveModule returns the base address and image size of the
	// named module. An empty name refers to the process' main module.
	ResolveModule(name string) (Module, error)
}

// RegionQuerier reports memory layout.
type RegionQuerier interface {
	// QueryRegion returns the region containing addr. The region
	// may start before addr. Implementations must never return
	// a zero-size region without an error.
	QueryRegion(addr Address) (Region, error)
}

// Reader reads memory.
type Reader interface {
	// ReadMemory reads n bytes starting at addr. Implementations
	// must either return exactly n bytes or an error.
	ReadMemory(addr Address, n uint64) ([]byte, error)
}

// Writer writes memory.
type Writer interface {
	// WriteMemory writes p starting at addr.
	WriteMemory(addr Address, p []byte) error
}

// Space is a complete address space capability.
type Space interface {
	ModuleResolver
	RegionQuerier
	Reader
	Writer
}

var (
	// DefaultExitFn is invoked by functions and methods ending in
	// the "OrExit" suffix when an error occurs.
	DefaultExitFn = func(err error) {
		log.Fatalln(err)
	}
)
