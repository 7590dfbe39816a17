package memory

import (
	"fmt"
	"strings"
)

const (
	// ProtectionOther is any protection not covered by the other
	// constants (guard pages, copy-on-write variants, reserved or
	// free memory and so on).
	ProtectionOther Protection = iota
	ProtectionNoAccess
	ProtectionReadOnly
	ProtectionReadWrite
	ProtectionExecute
	ProtectionExecuteRead
	ProtectionExecuteReadWrite
)

// Protection is the access protection of a region.
type Protection int

// ParseProtection parses the rwx notation used by String
// (e.g., "r-x").
func ParseProtection(s string) (Protection, error) {
	switch s {
	case "---":
		return ProtectionNoAccess, nil
	case "r--":
		return ProtectionReadOnly, nil
	case "rw-":
		return ProtectionReadWrite, nil
	case "--x":
		return ProtectionExecute, nil
	case "r-x":
		return ProtectionExecuteRead, nil
	case "rwx":
		return ProtectionExecuteReadWrite, nil
	case "other":
		return ProtectionOther, nil
	default:
		return ProtectionOther, fmt.Errorf("unknown protection: %q", s)
	}
}

func (o Protection) String() string {
	switch o {
	case ProtectionNoAccess:
		return "---"
	case ProtectionReadOnly:
		return "r--"
	case ProtectionReadWrite:
		return "rw-"
	case ProtectionExecute:
		return "--x"
	case ProtectionExecuteRead:
		return "r-x"
	case ProtectionExecuteReadWrite:
		return "rwx"
	default:
		return "other"
	}
}

// IsExecutable returns true if code in the region can be executed.
func (o Protection) IsExecutable() bool {
	return o == ProtectionExecute || o == ProtectionExecuteRead || o == ProtectionExecuteReadWrite
}

// DefaultProtections returns the protections that are monitored
// by default: execute-read and read-only.
func DefaultProtections() []Protection {
	return []Protection{ProtectionExecuteRead, ProtectionReadOnly}
}

// Region is a contiguous, uniformly protected range of an
// address space.
type Region struct {
	Base       Address
	Size       uint64
	Protection Protection
}

// End returns the first address past the region.
func (o Region) End() Address {
	return o.Base + Address(o.Size)
}

// Contains returns true if addr is inside the region.
func (o Region) Contains(addr Address) bool {
	return addr >= o.Base && addr < o.End()
}

// Overlaps returns true if the two regions share at least one address.
func (o Region) Overlaps(other Region) bool {
	return o.Base < other.End() && other.Base < o.End()
}

func (o Region) String() string {
	return fmt.Sprintf("%s-%s %s (0x%x bytes)",
		o.Base.HexString(), o.End().HexString(), o.Protection, o.Size)
}

// Module is a loaded executable image.
type Module struct {
	Name      string
	Base      Address
	ImageSize uint64
}

// End returns the first address past the module's image.
func (o Module) End() Address {
	return o.Base + Address(o.ImageSize)
}

func (o Module) String() string {
	name := o.Name
	if name == "" {
		name = "<main>"
	}

	return fmt.Sprintf("%s @ %s (0x%x bytes)",
		strings.TrimSpace(name), o.Base.HexString(), o.ImageSize)
}
