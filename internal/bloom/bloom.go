// Package bloom provides a Bloom filter for fast negative hash-index lookups.
//
// Segment hash indexes answer "which row holds this content hash". Most
// hash-keyed queries against a single segment miss, so the index is fronted
// by a Bloom filter: a "not present" answer skips the binary search with
// certainty, a "maybe present" answer falls through to the index.
package bloom

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrCorrupted indicates the serialized filter data is invalid.
var ErrCorrupted = errors.New("bloom: corrupted filter data")

// Filter is a space-efficient probabilistic set of content hashes.
// It can definitively say "not in set" but may report false positives.
type Filter struct {
	bits    []uint64
	numBits uint64
	k       uint32
	count   uint32
}

// optimalSize computes the bit-array size and hash count for the expected
// element count at the given false positive rate.
func optimalSize(expected int, fpr float64) (numBits uint64, k uint32) {
	if expected <= 0 {
		expected = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.01
	}

	m := float64(-expected) * math.Log(fpr) / (math.Ln2 * math.Ln2)
	kf := (m / float64(expected)) * math.Ln2

	numBits = ((uint64(m) + 63) / 64) * 64
	if numBits < 64 {
		numBits = 64
	}

	k = uint32(math.Ceil(kf))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	return numBits, k
}

// New creates a filter sized for the expected element count with
// approximately 1% false positive rate.
func New(expected int) *Filter {
	numBits, k := optimalSize(expected, 0.01)
	return &Filter{
		bits:    make([]uint64, numBits/64),
		numBits: numBits,
		k:       k,
	}
}

// Add inserts a content hash into the filter.
// After Add(h), MayContain(h) always returns true.
func (f *Filter) Add(hash []byte) {
	h1, h2 := mix(hash)
	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		f.bits[bit/64] |= 1 << (bit % 64)
	}
	f.count++
}

// MayContain reports whether the hash might be in the set.
// A false result is definitive.
func (f *Filter) MayContain(hash []byte) bool {
	h1, h2 := mix(hash)
	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of elements added to the filter.
func (f *Filter) Count() uint32 {
	return f.count
}

// MarshalBinary serializes the filter.
// Layout: numBits (8) | k (4) | count (4) | words.
func (f *Filter) MarshalBinary() ([]byte, error) {
	out := make([]byte, 16+len(f.bits)*8)
	binary.LittleEndian.PutUint64(out[0:8], f.numBits)
	binary.LittleEndian.PutUint32(out[8:12], f.k)
	binary.LittleEndian.PutUint32(out[12:16], f.count)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(out[16+i*8:], word)
	}
	return out, nil
}

// Unmarshal deserializes a filter produced by MarshalBinary.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < 16 {
		return nil, ErrCorrupted
	}
	numBits := binary.LittleEndian.Uint64(data[0:8])
	k := binary.LittleEndian.Uint32(data[8:12])
	count := binary.LittleEndian.Uint32(data[12:16])

	if numBits < 64 || numBits%64 != 0 {
		return nil, ErrCorrupted
	}
	if k < 1 || k > 16 {
		return nil, ErrCorrupted
	}
	numWords := int(numBits / 64)
	if len(data) != 16+numWords*8 {
		return nil, ErrCorrupted
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(data[16+i*8:])
	}
	return &Filter{bits: bits, numBits: numBits, k: k, count: count}, nil
}

// mix derives two hash values for double hashing. Keys are already
// cryptographic content hashes, so their own bytes provide the entropy;
// short keys fall back to FNV-1a.
func mix(hash []byte) (h1, h2 uint64) {
	if len(hash) >= 16 {
		h1 = binary.LittleEndian.Uint64(hash[0:8])
		h2 = binary.LittleEndian.Uint64(hash[8:16]) | 1
		return h1, h2
	}

	const (
		fnvOffset = 14695981039346656037
		fnvPrime  = 1099511628211
	)
	h1 = fnvOffset
	for i := 0; i < len(hash); i++ {
		h1 ^= uint64(hash[i])
		h1 *= fnvPrime
	}
	h2 = fnvOffset ^ 0x5555555555555555
	for i := len(hash) - 1; i >= 0; i-- {
		h2 ^= uint64(hash[i])
		h2 *= fnvPrime
	}
	h2 |= 1
	return h1, h2
}
