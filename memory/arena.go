package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// NewArena creates an empty *Arena.
func NewArena() *Arena {
	return &Arena{
		modules: make(map[string]Module),
	}
}

// Arena is a synthetic address space backed by Go byte slices. It
// implements Space and is safe for concurrent use.
//
// Unmapped addresses are reported by QueryRegion as holes with
// ProtectionNoAccess, the way an operating system reports free memory.
// Reads honor protection (no-access regions cannot be read), while
// writes do not, mirroring a debugger-style write primitive.
type Arena struct {
	rwMu       sync.RWMutex
	mappings   []*arenaMapping
	modules    map[string]Module
	mainModule string
}

type arenaMapping struct {
	base    Address
	data    []byte
	prot    Protection
	readErr error
}

func (o *arenaMapping) region() Region {
	return Region{
		Base:       o.base,
		Size:       uint64(len(o.data)),
		Protection: o.prot,
	}
}

// MapOrExit calls Map. DefaultExitFn is invoked if an error occurs.
func (o *Arena) MapOrExit(base Address, data []byte, prot Protection) *Arena {
	err := o.Map(base, data, prot)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to map region - %w", err))
	}
	return o
}

// Map maps a copy of data at base with the specified protection.
func (o *Arena) Map(base Address, data []byte, prot Protection) error {
	if len(data) == 0 {
		return errors.New("mapping cannot be zero-length")
	}

	_, overflowed := base.Add(uint64(len(data)))
	if overflowed {
		return fmt.Errorf("mapping at %s with size 0x%x wraps the address space",
			base.HexString(), len(data))
	}

	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	candidate := &arenaMapping{
		base: base,
		data: append([]byte(nil), data...),
		prot: prot,
	}

	for _, m := range o.mappings {
		if m.region().Overlaps(candidate.region()) {
			return fmt.Errorf("mapping %s overlaps existing mapping %s",
				candidate.region(), m.region())
		}
	}

	o.mappings = append(o.mappings, candidate)
	sort.Slice(o.mappings, func(i, j int) bool {
		return o.mappings[i].base < o.mappings[j].base
	})

	return nil
}

// Unmap removes the mapping starting at base.
func (o *Arena) Unmap(base Address) error {
	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	i, err := o.mappingIndexLocked(base)
	if err != nil {
		return err
	}

	o.mappings = append(o.mappings[:i], o.mappings[i+1:]...)

	return nil
}

// Resize changes the size of the mapping starting at base. Growing
// a mapping zero-fills the new bytes.
func (o *Arena) Resize(base Address, size uint64) error {
	if size == 0 {
		return errors.New("cannot resize a mapping to zero bytes, use Unmap")
	}

	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	i, err := o.mappingIndexLocked(base)
	if err != nil {
		return err
	}

	m := o.mappings[i]

	if size <= uint64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}

	grown := Region{Base: base, Size: size}
	if i+1 < len(o.mappings) && grown.Overlaps(o.mappings[i+1].region()) {
		return fmt.Errorf("resized mapping %s would overlap %s",
			grown, o.mappings[i+1].region())
	}

	m.data = append(m.data, make([]byte, size-uint64(len(m.data)))...)

	return nil
}

// Protect changes the protection of the mapping starting at base.
func (o *Arena) Protect(base Address, prot Protection) error {
	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	i, err := o.mappingIndexLocked(base)
	if err != nil {
		return err
	}

	o.mappings[i].prot = prot

	return nil
}

// FailReads makes every read touching the mapping at base fail
// with err. A nil err restores normal reads.
func (o *Arena) FailReads(base Address, err error) error {
	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	i, findErr := o.mappingIndexLocked(base)
	if findErr != nil {
		return findErr
	}

	o.mappings[i].readErr = err

	return nil
}

// AddModule registers a module. The first module added is the main
// module, which is what an empty name resolves to.
func (o *Arena) AddModule(module Module) *Arena {
	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	if len(o.modules) == 0 {
		o.mainModule = module.Name
	}

	o.modules[strings.ToLower(module.Name)] = module

	return o
}

func (o *Arena) ResolveModule(name string) (Module, error) {
	o.rwMu.RLock()
	defer o.rwMu.RUnlock()

	if name == "" {
		if len(o.modules) == 0 {
			return Module{}, errors.New("no modules are loaded")
		}

		name = o.mainModule
	}

	module, hasIt := o.modules[strings.ToLower(name)]
	if !hasIt {
		return Module{}, fmt.Errorf("module %q is not loaded", name)
	}

	return module, nil
}

func (o *Arena) QueryRegion(addr Address) (Region, error) {
	o.rwMu.RLock()
	defer o.rwMu.RUnlock()

	holeStart := Address(0)

	for _, m := range o.mappings {
		r := m.region()
		if r.Contains(addr) {
			return r, nil
		}

		if r.Base > addr {
			return Region{
				Base:       holeStart,
				Size:       uint64(r.Base - holeStart),
				Protection: ProtectionNoAccess,
			}, nil
		}

		holeStart = r.End()
	}

	if holeStart == math.MaxUint64 {
		return Region{}, fmt.Errorf("address %s is past the end of the address space",
			addr.HexString())
	}

	return Region{
		Base:       holeStart,
		Size:       math.MaxUint64 - uint64(holeStart),
		Protection: ProtectionNoAccess,
	}, nil
}

func (o *Arena) ReadMemory(addr Address, n uint64) ([]byte, error) {
	o.rwMu.RLock()
	defer o.rwMu.RUnlock()

	out := make([]byte, n)

	err := o.spanLocked(addr, n, func(m *arenaMapping, mOffset uint64, outOffset uint64, size uint64) error {
		if m.readErr != nil {
			return m.readErr
		}

		if m.prot == ProtectionNoAccess || m.prot == ProtectionExecute {
			return fmt.Errorf("mapping %s is not readable", m.region())
		}

		copy(out[outOffset:outOffset+size], m.data[mOffset:mOffset+size])

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (o *Arena) WriteMemory(addr Address, p []byte) error {
	o.rwMu.Lock()
	defer o.rwMu.Unlock()

	return o.spanLocked(addr, uint64(len(p)), func(m *arenaMapping, mOffset uint64, pOffset uint64, size uint64) error {
		copy(m.data[mOffset:mOffset+size], p[pOffset:pOffset+size])
		return nil
	})
}

// spanLocked calls fn for each mapping touched by [addr, addr+n).
// The range must be fully covered by contiguous mappings.
func (o *Arena) spanLocked(addr Address, n uint64, fn func(m *arenaMapping, mOffset uint64, bufOffset uint64, size uint64) error) error {
	if n == 0 {
		return nil
	}

	if _, overflowed := addr.Add(n); overflowed {
		return fmt.Errorf("range at %s with size 0x%x wraps the address space",
			addr.HexString(), n)
	}

	done := uint64(0)

	for done < n {
		current := addr + Address(done)

		var m *arenaMapping
		for _, candidate := range o.mappings {
			if candidate.region().Contains(current) {
				m = candidate
				break
			}
		}

		if m == nil {
			return fmt.Errorf("address %s is not mapped", current.HexString())
		}

		mOffset := uint64(current - m.base)
		size := uint64(len(m.data)) - mOffset
		if size > n-done {
			size = n - done
		}

		err := fn(m, mOffset, done, size)
		if err != nil {
			return err
		}

		done += size
	}

	return nil
}

func (o *Arena) mappingIndexLocked(base Address) (int, error) {
	for i, m := range o.mappings {
		if m.base == base {
			return i, nil
		}
	}

	return 0, fmt.Errorf("no mapping starts at %s", base.HexString())
}
