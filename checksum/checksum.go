// Package checksum computes integrity fingerprints over memory.
//
// A Fingerprint is a fast, non-cryptographic 64-bit hash (xxHash64).
// It is good at catching accidental and most deliberate writes, but
// it is not meant to resist an adversary that can choose collisions.
package checksum

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Empty is the fingerprint of a zero-length buffer.
const Empty Fingerprint = 0xef46db3751d8e999

// Fingerprint is the integrity hash of a byte buffer.
type Fingerprint uint64

func (o Fingerprint) String() string {
	return fmt.Sprintf("0x%016x", uint64(o))
}

// Sum returns the fingerprint of p. It is deterministic and sensitive
// to byte order.
func Sum(p []byte) Fingerprint {
	if len(p) == 0 {
		return Empty
	}

	return Fingerprint(xxhash.Sum64(p))
}

// New returns a streaming digest. Feeding it a buffer in any number of
// chunks yields the same value as Sum over the whole buffer.
func New() *Digest {
	return &Digest{
		d: xxhash.New(),
	}
}

// Digest accumulates a fingerprint incrementally.
type Digest struct {
	d *xxhash.Digest
}

func (o *Digest) Write(p []byte) (int, error) {
	return o.d.Write(p)
}

// Fingerprint returns the fingerprint of everything written so far.
func (o *Digest) Fingerprint() Fingerprint {
	return Fingerprint(o.d.Sum64())
}

// Reset discards everything written so far.
func (o *Digest) Reset() {
	o.d.Reset()
}
