// Package process attaches to a running process and exposes its
// address space as a memory.Space.
//
// On Linux, the layout is read from /proc/<pid>/maps, memory is read
// with process_vm_readv (falling back to /proc/<pid>/mem) and written
// through /proc/<pid>/mem. On Windows, the psapi module functions,
// VirtualQueryEx, ReadProcessMemory and WriteProcessMemory are used.
package process
