//go:build !linux && !windows

package process

import (
	"fmt"
	"runtime"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

// OpenOrExit calls Open. DefaultExitFn is invoked if an error occurs.
func OpenOrExit(pid int) *Process {
	p, err := Open(pid)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to open process %d - %w", pid, err))
	}
	return p
}

// Open is not supported on this platform.
func Open(pid int) (*Process, error) {
	return nil, fmt.Errorf("attaching to processes is not supported on %s", runtime.GOOS)
}

// Self is not supported on this platform.
func Self() (*Process, error) {
	return Open(0)
}

// Process is an attached process.
type Process struct {
	pid int
}

func (o *Process) PID() int {
	return o.pid
}

func (o *Process) Close() error {
	return nil
}

func (o *Process) Alive() bool {
	return false
}

func (o *Process) ResolveModule(name string) (memory.Module, error) {
	return memory.Module{}, fmt.Errorf("unsupported on %s", runtime.GOOS)
}

func (o *Process) QueryRegion(addr memory.Address) (memory.Region, error) {
	return memory.Region{}, fmt.Errorf("unsupported on %s", runtime.GOOS)
}

func (o *Process) ReadMemory(addr memory.Address, n uint64) ([]byte, error) {
	return nil, fmt.Errorf("unsupported on %s", runtime.GOOS)
}

func (o *Process) WriteMemory(addr memory.Address, p []byte) error {
	return fmt.Errorf("unsupported on %s", runtime.GOOS)
}
