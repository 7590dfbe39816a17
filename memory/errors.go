package memory

import "fmt"

// ResolutionError is returned when a module cannot be resolved,
// for example because it is not loaded.
type ResolutionError struct {
	Module string
	Err    error
}

func (o *ResolutionError) Error() string {
	name := o.Module
	if name == "" {
		name = "<main>"
	}

	return fmt.Sprintf("failed to resolve module %q - %v", name, o.Err)
}

func (o *ResolutionError) Unwrap() error {
	return o.Err
}

// QueryError is returned when region metadata is unavailable.
type QueryError struct {
	Address Address
	Err     error
}

func (o *QueryError) Error() string {
	return fmt.Sprintf("failed to query region at %s - %v", o.Address.HexString(), o.Err)
}

func (o *QueryError) Unwrap() error {
	return o.Err
}

// ReadError is returned when memory cannot be read.
type ReadError struct {
	Address Address
	Size    uint64
	Err     error
}

func (o *ReadError) Error() string {
	return fmt.Sprintf("failed to read 0x%x bytes at %s - %v",
		o.Size, o.Address.HexString(), o.Err)
}

func (o *ReadError) Unwrap() error {
	return o.Err
}

// WriteError is returned when memory cannot be written.
type WriteError struct {
	Address Address
	Err     error
}

func (o *WriteError) Error() string {
	return fmt.Sprintf("failed to write at %s - %v", o.Address.HexString(), o.Err)
}

func (o *WriteError) Unwrap() error {
	return o.Err
}

// RegionSizeMismatchError is returned when a region's live size no
// longer matches the size it had when it was captured. Byte-for-byte
// comparison is undefined in that case.
type RegionSizeMismatchError struct {
	Address Address
	Want    uint64

	// Got is the live size starting at Address. It is zero when
	// Address is no longer the start of or inside a region.
	Got uint64
}

func (o *RegionSizeMismatchError) Error() string {
	return fmt.Sprintf("region at %s changed size - expected 0x%x bytes, got 0x%x",
		o.Address.HexString(), o.Want, o.Got)
}
