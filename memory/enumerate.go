package memory

import (
	"errors"
	"fmt"
	"log"
)

const (
	// BoundaryInclude keeps a monitored region that straddles one of
	// the module's bounds whole.
	BoundaryInclude BoundaryPolicy = iota

	// BoundaryClip trims a straddling region to the module's bounds.
	BoundaryClip

	// BoundaryExclude drops a straddling region.
	BoundaryExclude
)

// BoundaryPolicy decides what happens to a region that starts inside
// a module's image but extends past one of its bounds.
type BoundaryPolicy int

// ParseBoundaryPolicy parses the value returned by BoundaryPolicy.String.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "include", "":
		return BoundaryInclude, nil
	case "clip":
		return BoundaryClip, nil
	case "exclude":
		return BoundaryExclude, nil
	default:
		return BoundaryInclude, fmt.Errorf("unknown boundary policy: %q", s)
	}
}

func (o BoundaryPolicy) String() string {
	switch o {
	case BoundaryClip:
		return "clip"
	case BoundaryExclude:
		return "exclude"
	default:
		return "include"
	}
}

// ModuleQuerier is the subset of Space needed to walk a module.
type ModuleQuerier interface {
	ModuleResolver
	RegionQuerier
}

// EnumerateMonitoredRegionsOrExit calls EnumerateMonitoredRegions.
// DefaultExitFn is invoked if an error occurs.
func EnumerateMonitoredRegionsOrExit(space ModuleQuerier, moduleName string) []Region {
	regions, err := EnumerateMonitoredRegions(space, moduleName)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to enumerate regions - %w", err))
	}
	return regions
}

// EnumerateMonitoredRegions returns the execute-read and read-only
// regions of the named module in ascending address order. An empty
// name refers to the main module.
//
// A *ResolutionError is returned if the module cannot be resolved,
// and a *QueryError if a region query fails.
func EnumerateMonitoredRegions(space ModuleQuerier, moduleName string) ([]Region, error) {
	return Enumerator{}.Enumerate(space, moduleName)
}

// Enumerator walks a module's regions. The zero value is ready to
// use and behaves like EnumerateMonitoredRegions.
type Enumerator struct {
	// Protections optionally overrides the protections that are
	// kept. DefaultProtections is used when it is empty.
	Protections []Protection

	// Boundary is the policy for regions that straddle the
	// module's bounds.
	Boundary BoundaryPolicy

	// Logger optionally receives a line for each region that
	// is visited.
	Logger *log.Logger
}

// Enumerate walks the named module. Refer to EnumerateMonitoredRegions
// for details.
func (o Enumerator) Enumerate(space ModuleQuerier, moduleName string) ([]Region, error) {
	module, err := space.ResolveModule(moduleName)
	if err != nil {
		return nil, &ResolutionError{Module: moduleName, Err: err}
	}

	if module.ImageSize == 0 {
		return nil, &ResolutionError{
			Module: moduleName,
			Err:    errors.New("module image size is zero"),
		}
	}

	moduleEnd, overflowed := module.Base.Add(module.ImageSize)
	if overflowed {
		return nil, &ResolutionError{
			Module: moduleName,
			Err: fmt.Errorf("module at %s with size 0x%x wraps the address space",
				module.Base.HexString(), module.ImageSize),
		}
	}

	o.logf("walking %s", module)

	var regions []Region
	addr := module.Base

	for addr < moduleEnd {
		region, err := space.QueryRegion(addr)
		if err != nil {
			return nil, &QueryError{Address: addr, Err: err}
		}

		if region.Size == 0 {
			return nil, &QueryError{
				Address: addr,
				Err:     errors.New("query returned a zero-size region"),
			}
		}

		if addr < region.Base || uint64(addr-region.Base) >= region.Size {
			return nil, &QueryError{
				Address: addr,
				Err:     fmt.Errorf("query returned region %s which does not contain the address", region),
			}
		}

		regionEnd, lastRegion := region.Base.Add(region.Size)

		if o.isMonitored(region.Protection) {
			kept, ok := o.applyBoundary(region, module.Base, moduleEnd, lastRegion)
			if ok {
				o.logf("monitoring %s", kept)
				regions = append(regions, kept)
			} else {
				o.logf("excluding %s - it crosses the module's bounds", region)
			}
		} else {
			o.logf("skipping %s", region)
		}

		if lastRegion {
			break
		}

		addr = regionEnd
	}

	return regions, nil
}

func (o Enumerator) isMonitored(p Protection) bool {
	protections := o.Protections
	if len(protections) == 0 {
		protections = DefaultProtections()
	}

	for _, candidate := range protections {
		if p == candidate {
			return true
		}
	}

	return false
}

// applyBoundary applies the boundary policy to region. regionWraps
// is true when the region extends to the very top of the address space.
func (o Enumerator) applyBoundary(region Region, lower Address, upper Address, regionWraps bool) (Region, bool) {
	crossesLower := region.Base < lower
	crossesUpper := regionWraps || region.End() > upper

	if !crossesLower && !crossesUpper {
		return region, true
	}

	switch o.Boundary {
	case BoundaryExclude:
		return Region{}, false
	case BoundaryClip:
		start := region.Base
		if crossesLower {
			start = lower
		}

		end := region.End()
		if crossesUpper {
			end = upper
		}

		return Region{
			Base:       start,
			Size:       uint64(end - start),
			Protection: region.Protection,
		}, true
	default:
		return region, true
	}
}

func (o Enumerator) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
