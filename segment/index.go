package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainkit/coldstore/internal/bloom"
)

// The hash index maps content hashes to row ordinals. It is a Bloom filter
// followed by entries sorted by hash, searched with binary search:
// [bloomLen uint32][bloom][count uint64][hash 32 | ordinal 8]...
//
// Header and transaction segments carry a hash index; receipt segments do
// not, a hash-keyed receipt lookup resolves through a transaction segment.
const indexEntrySize = 40

// HashIndexEntry associates a content hash with the ordinal (0-based
// position) of its row within the segment.
type HashIndexEntry struct {
	Hash    common.Hash
	Ordinal uint64
}

// BuildHashIndex serializes a hash index section from the given entries.
// The input is not mutated; entries are sorted by hash internally.
func BuildHashIndex(entries []HashIndexEntry) ([]byte, error) {
	sorted := make([]HashIndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Hash[:], sorted[j].Hash[:]) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Hash == sorted[i-1].Hash {
			return nil, fmt.Errorf("segment: duplicate hash in index: %s", sorted[i].Hash)
		}
	}

	filter := bloom.New(len(sorted))
	for _, e := range sorted {
		filter.Add(e.Hash[:])
	}
	filterBytes, err := filter.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4+len(filterBytes)+8+len(sorted)*indexEntrySize)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(filterBytes)))
	out = append(out, filterBytes...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(sorted)))
	for _, e := range sorted {
		out = append(out, e.Hash[:]...)
		out = binary.LittleEndian.AppendUint64(out, e.Ordinal)
	}
	return out, nil
}

type hashIndex struct {
	filter  *bloom.Filter
	entries []byte // sorted fixed-size entries, aliases the mapped file
	count   uint64
}

func parseHashIndex(data []byte) (*hashIndex, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: truncated hash index", ErrCorrupted)
	}
	bloomLen := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint64(len(data)) < uint64(bloomLen)+8 {
		return nil, fmt.Errorf("%w: truncated hash index", ErrCorrupted)
	}

	filter, err := bloom.Unmarshal(data[:bloomLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	data = data[bloomLen:]

	count := binary.LittleEndian.Uint64(data)
	data = data[8:]
	if uint64(len(data)) != count*indexEntrySize {
		return nil, fmt.Errorf("%w: hash index entry section size mismatch", ErrCorrupted)
	}

	return &hashIndex{filter: filter, entries: data, count: count}, nil
}

// lookup resolves a content hash to a row ordinal.
func (ix *hashIndex) lookup(h common.Hash) (uint64, bool) {
	if !ix.filter.MayContain(h[:]) {
		return 0, false
	}

	lo, hi := uint64(0), ix.count
	for lo < hi {
		mid := (lo + hi) / 2
		entry := ix.entries[mid*indexEntrySize:]
		switch bytes.Compare(h[:], entry[:32]) {
		case 0:
			return binary.LittleEndian.Uint64(entry[32:40]), true
		case -1:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return 0, false
}
