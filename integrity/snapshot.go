package integrity

import (
	"fmt"
	"log"

	"gitlab.com/stephen-fox/pagewatch/checksum"
	"gitlab.com/stephen-fox/pagewatch/memory"
)

// Snapshot is an immutable copy of a region's bytes and their
// fingerprint at capture time.
type Snapshot struct {
	region      memory.Region
	data        []byte
	fingerprint checksum.Fingerprint
}

// Region returns the captured region.
func (o *Snapshot) Region() memory.Region {
	return o.region
}

// Fingerprint returns the fingerprint of the captured bytes.
func (o *Snapshot) Fingerprint() checksum.Fingerprint {
	return o.fingerprint
}

// Len returns the number of captured bytes.
func (o *Snapshot) Len() int {
	return len(o.data)
}

// ByteAt returns the captured byte at addr.
func (o *Snapshot) ByteAt(addr memory.Address) (byte, bool) {
	if !o.region.Contains(addr) {
		return 0, false
	}

	return o.data[addr-o.region.Base], true
}

// Bytes returns a copy of the captured bytes.
func (o *Snapshot) Bytes() []byte {
	return append([]byte(nil), o.data...)
}

// CaptureOrExit calls Capture. memory.DefaultExitFn is invoked if an
// error occurs.
func CaptureOrExit(reader memory.Reader, region memory.Region, optLogger *log.Logger) *Snapshot {
	s, err := Capture(reader, region, optLogger)
	if err != nil {
		memory.DefaultExitFn(fmt.Errorf("failed to capture region - %w", err))
	}
	return s
}

// Capture reads all of region's bytes and fingerprints them.
// A *memory.ReadError is returned if the region cannot be read.
func Capture(reader memory.Reader, region memory.Region, optLogger *log.Logger) (*Snapshot, error) {
	data, err := reader.ReadMemory(region.Base, region.Size)
	if err != nil {
		return nil, &memory.ReadError{Address: region.Base, Size: region.Size, Err: err}
	}

	if uint64(len(data)) != region.Size {
		return nil, &memory.ReadError{
			Address: region.Base,
			Size:    region.Size,
			Err:     fmt.Errorf("short read of 0x%x bytes", len(data)),
		}
	}

	s := &Snapshot{
		region:      region,
		data:        data,
		fingerprint: checksum.Sum(data),
	}

	if optLogger != nil {
		optLogger.Printf("captured region %s size 0x%x protection %s fingerprint %s",
			region.Base.HexString(), region.Size, region.Protection, s.fingerprint)
	}

	return s, nil
}
