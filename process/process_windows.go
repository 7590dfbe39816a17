//go:build windows

package process

import (
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"gitlab.com/stephen-fox/pagewatch/memory"
	"golang.org/x/sys/windows"
)

const stillActive = 259

// OpenOrExit calls Open. DefaultExitFn is invoked if an error occurs.
func OpenOrExit(pid int) *Process {
	p, err := Open(pid)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to open process %d - %w", pid, err))
	}
	return p
}

// Open attaches to the process identified by pid.
func Open(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid: %d", pid)
	}

	handle, err := windows.OpenProcess(
		windows.PROCESS_QUERY_INFORMATION|
			windows.PROCESS_VM_READ|
			windows.PROCESS_VM_WRITE|
			windows.PROCESS_VM_OPERATION,
		false,
		uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to open process - %w", err)
	}

	return &Process{
		pid:    pid,
		handle: handle,
	}, nil
}

// Self attaches to the current process.
func Self() (*Process, error) {
	return Open(int(windows.GetCurrentProcessId()))
}

// Process is an attached process. It implements memory.Space.
type Process struct {
	pid    int
	handle windows.Handle
}

// PID returns the process ID.
func (o *Process) PID() int {
	return o.pid
}

// Close closes the process handle.
func (o *Process) Close() error {
	return windows.CloseHandle(o.handle)
}

// Alive returns true if the process has not exited.
func (o *Process) Alive() bool {
	var code uint32

	err := windows.GetExitCodeProcess(o.handle, &code)
	if err != nil {
		return false
	}

	return code == stillActive
}

func (o *Process) modules() ([]windows.Handle, error) {
	modules := make([]windows.Handle, 256)

	for {
		var needed uint32
		size := uint32(len(modules) * int(unsafe.Sizeof(modules[0])))

		err := windows.EnumProcessModules(o.handle, &modules[0], size, &needed)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate modules - %w", err)
		}

		count := int(needed / uint32(unsafe.Sizeof(modules[0])))
		if count <= len(modules) {
			return modules[:count], nil
		}

		modules = make([]windows.Handle, count)
	}
}

// ResolveModule finds a loaded module by its base name, ignoring case.
// An empty name refers to the process' executable.
func (o *Process) ResolveModule(name string) (memory.Module, error) {
	modules, err := o.modules()
	if err != nil {
		return memory.Module{}, err
	}

	if len(modules) == 0 {
		return memory.Module{}, fmt.Errorf("process has no modules")
	}

	wantMain := name == ""
	if !wantMain {
		name = filepath.Base(name)
	}

	for i, module := range modules {
		var nameBuf [windows.MAX_PATH]uint16

		err := windows.GetModuleBaseName(o.handle, module, &nameBuf[0], uint32(len(nameBuf)))
		if err != nil {
			return memory.Module{}, fmt.Errorf("failed to get module name - %w", err)
		}

		baseName := windows.UTF16ToString(nameBuf[:])

		if wantMain && i != 0 || !wantMain && !strings.EqualFold(name, baseName) {
			continue
		}

		var info windows.ModuleInfo

		err = windows.GetModuleInformation(o.handle, module, &info, uint32(unsafe.Sizeof(info)))
		if err != nil {
			return memory.Module{}, fmt.Errorf("failed to get information for module %q - %w",
				baseName, err)
		}

		return memory.Module{
			Name:      baseName,
			Base:      memory.Address(info.BaseOfDll),
			ImageSize: uint64(info.SizeOfImage),
		}, nil
	}

	return memory.Module{}, fmt.Errorf("module %q is not loaded", name)
}

func (o *Process) QueryRegion(addr memory.Address) (memory.Region, error) {
	var info windows.MemoryBasicInformation

	err := windows.VirtualQueryEx(o.handle, uintptr(addr), &info, unsafe.Sizeof(info))
	if err != nil {
		return memory.Region{}, err
	}

	return memory.Region{
		Base:       memory.Address(info.BaseAddress),
		Size:       uint64(info.RegionSize),
		Protection: protectionFromWindows(info.State, info.Protect),
	}, nil
}

// protectionFromWindows maps an exact PAGE_* value. Modifiers such
// as PAGE_GUARD produce memory.ProtectionOther.
func protectionFromWindows(state uint32, protect uint32) memory.Protection {
	if state != windows.MEM_COMMIT {
		return memory.ProtectionOther
	}

	switch protect {
	case windows.PAGE_NOACCESS:
		return memory.ProtectionNoAccess
	case windows.PAGE_READONLY:
		return memory.ProtectionReadOnly
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return memory.ProtectionReadWrite
	case windows.PAGE_EXECUTE:
		return memory.ProtectionExecute
	case windows.PAGE_EXECUTE_READ:
		return memory.ProtectionExecuteRead
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return memory.ProtectionExecuteReadWrite
	default:
		return memory.ProtectionOther
	}
}

func (o *Process) ReadMemory(addr memory.Address, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	var numRead uintptr

	err := windows.ReadProcessMemory(o.handle, uintptr(addr), &buf[0], uintptr(n), &numRead)
	if err != nil {
		return nil, err
	}

	if uint64(numRead) != n {
		return nil, fmt.Errorf("short read of 0x%x bytes", numRead)
	}

	return buf, nil
}

// WriteMemory makes the target pages writable for the duration of
// the write and then restores their protection.
func (o *Process) WriteMemory(addr memory.Address, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	var oldProtect uint32

	err := windows.VirtualProtectEx(o.handle, uintptr(addr), uintptr(len(p)),
		windows.PAGE_EXECUTE_READWRITE, &oldProtect)
	if err != nil {
		return fmt.Errorf("failed to make memory writable - %w", err)
	}

	var numWritten uintptr

	writeErr := windows.WriteProcessMemory(o.handle, uintptr(addr), &p[0], uintptr(len(p)), &numWritten)

	err = windows.VirtualProtectEx(o.handle, uintptr(addr), uintptr(len(p)), oldProtect, &oldProtect)
	if writeErr != nil {
		return writeErr
	}

	if err != nil {
		return fmt.Errorf("failed to restore memory protection - %w", err)
	}

	if int(numWritten) != len(p) {
		return fmt.Errorf("short write of 0x%x bytes", numWritten)
	}

	return nil
}
