//go:build linux

package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gitlab.com/stephen-fox/pagewatch/memory"
	"golang.org/x/sys/unix"
)

// OpenOrExit calls Open. DefaultExitFn is invoked if an error occurs.
func OpenOrExit(pid int) *Process {
	p, err := Open(pid)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to open process %d - %w", pid, err))
	}
	return p
}

// Open attaches to the process identified by pid.
//
// Writes go through /proc/<pid>/mem, which requires ptrace access
// to the process. If the file cannot be opened for writing, it is
// opened read-only and WriteMemory fails.
func Open(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid: %d", pid)
	}

	procDir := "/proc/" + strconv.Itoa(pid)

	_, err := os.Stat(procDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat process directory - %w", err)
	}

	mem, err := os.OpenFile(procDir+"/mem", os.O_RDWR, 0)
	if err != nil {
		mem, err = os.Open(procDir + "/mem")
		if err != nil {
			return nil, fmt.Errorf("failed to open process memory file - %w", err)
		}
	}

	return &Process{
		pid:     pid,
		procDir: procDir,
		mem:     mem,
	}, nil
}

// Self attaches to the current process.
func Self() (*Process, error) {
	return Open(os.Getpid())
}

// Process is an attached process. It implements memory.Space.
type Process struct {
	pid     int
	procDir string
	mem     *os.File
}

// PID returns the process ID.
func (o *Process) PID() int {
	return o.pid
}

// Close releases the process' memory file.
func (o *Process) Close() error {
	return o.mem.Close()
}

// Alive returns true if the process still exists.
func (o *Process) Alive() bool {
	err := unix.Kill(o.pid, 0)
	if err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}

	stat, err := os.ReadFile(o.procDir + "/stat")
	if err != nil {
		return false
	}

	// The state follows the parenthesized command name.
	i := bytes.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		return true
	}

	return stat[i+2] != 'Z' && stat[i+2] != 'X'
}

func (o *Process) mappings() ([]mapping, error) {
	f, err := os.Open(o.procDir + "/maps")
	if err != nil {
		return nil, fmt.Errorf("failed to open maps file - %w", err)
	}
	defer f.Close()

	return parseMaps(f)
}

// ResolveModule finds the file-backed mappings of the named module.
// name may be a full path or a base name. An empty name refers to
// the process' executable.
func (o *Process) ResolveModule(name string) (memory.Module, error) {
	if name == "" {
		exe, err := os.Readlink(o.procDir + "/exe")
		if err != nil {
			return memory.Module{}, fmt.Errorf("failed to read executable path - %w", err)
		}

		name = exe
	}

	mappings, err := o.mappings()
	if err != nil {
		return memory.Module{}, err
	}

	module, found := moduleFromMappings(mappings, name)
	if !found {
		return memory.Module{}, fmt.Errorf("module %q is not mapped", name)
	}

	return module, nil
}

func (o *Process) QueryRegion(addr memory.Address) (memory.Region, error) {
	mappings, err := o.mappings()
	if err != nil {
		return memory.Region{}, err
	}

	region := regionFromMappings(mappings, addr)
	if region.Size == 0 {
		return memory.Region{}, fmt.Errorf("address %s is past the end of the address space",
			addr.HexString())
	}

	return region, nil
}

func (o *Process) ReadMemory(addr memory.Address, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(int(n))

	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: int(n)}}

	numRead, err := unix.ProcessVMReadv(o.pid, local, remote, 0)
	if err == nil && uint64(numRead) == n {
		return buf, nil
	}

	// process_vm_readv may be blocked by seccomp or a missing
	// capability while /proc/<pid>/mem is still readable.
	_, err = o.mem.ReadAt(buf, int64(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file - %w", err)
	}

	return buf, nil
}

// WriteMemory writes p through /proc/<pid>/mem, which ignores page
// protection.
func (o *Process) WriteMemory(addr memory.Address, p []byte) error {
	_, err := o.mem.WriteAt(p, int64(addr))
	if err != nil {
		return fmt.Errorf("failed to write memory file - %w", err)
	}

	return nil
}
