// Package segment implements the immutable, columnar, memory-mapped segment
// files that hold historical chain data, and the cursor used to decode
// masked columns out of them.
//
// A segment covers a contiguous, closed range of row keys (block numbers
// for headers, transaction numbers for transactions and receipts) for
// exactly one kind. Once published a segment never changes, so readers
// take no locks; cells are served as zero-copy views into the mapping
// whenever the segment is uncompressed.
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/chainkit/coldstore/internal/mmap"
)

// Segment is a read-only handle over one mapped segment file.
//
// A Segment is safe for concurrent readers; each caller must use its own
// Cursor, which carries per-call state.
type Segment struct {
	hdr    FileHeader
	closer io.Closer // unmaps the file when the segment owns the mapping

	cells    []byte // cell data section
	offsets  []byte // raw offset table, rowCount*columns+1 uint64 entries
	presence *roaring.Bitmap
	index    *hashIndex // nil when the segment has no hash index
}

// Open maps the segment file at path and validates it. The returned
// segment owns the mapping; Close releases it.
func Open(path string) (*Segment, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	// Keyed lookups touch the file in index order, not file order.
	_ = m.Advise(mmap.AccessRandom)

	s, err := New(m.Bytes())
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	s.closer = m
	return s, nil
}

// New parses and validates a segment from raw file bytes. The caller keeps
// ownership of the backing memory and must keep it alive for the segment's
// lifetime.
func New(data []byte) (*Segment, error) {
	hdr, err := parseFileHeader(data)
	if err != nil {
		return nil, err
	}

	size := uint64(len(data))
	if hdr.DataOffset != HeaderSize ||
		hdr.OffsetsOffset < hdr.DataOffset || hdr.OffsetsOffset > size ||
		hdr.PresenceOffset < hdr.OffsetsOffset || hdr.PresenceOffset > size ||
		(hdr.IndexOffset != 0 && (hdr.IndexOffset < hdr.PresenceOffset || hdr.IndexOffset > size)) {
		return nil, fmt.Errorf("%w: section offsets out of order", ErrCorrupted)
	}

	body := data[HeaderSize:]
	if actual := crc32.ChecksumIEEE(body); actual != hdr.Checksum {
		return nil, &ChecksumMismatchError{Expected: hdr.Checksum, Actual: actual}
	}

	s := &Segment{
		hdr:   hdr,
		cells: data[hdr.DataOffset:hdr.OffsetsOffset],
	}

	wantOffsets := (hdr.RowCount*uint64(hdr.Columns) + 1) * 8
	if hdr.PresenceOffset-hdr.OffsetsOffset != wantOffsets {
		return nil, fmt.Errorf("%w: offset table size mismatch", ErrCorrupted)
	}
	s.offsets = data[hdr.OffsetsOffset:hdr.PresenceOffset]

	presenceEnd := hdr.IndexOffset
	if presenceEnd == 0 {
		presenceEnd = size
	}
	s.presence = roaring.New()
	if err := s.presence.UnmarshalBinary(data[hdr.PresenceOffset:presenceEnd]); err != nil {
		return nil, fmt.Errorf("%w: presence bitmap: %v", ErrCorrupted, err)
	}

	if hdr.IndexOffset != 0 {
		ix, err := parseHashIndex(data[hdr.IndexOffset:])
		if err != nil {
			return nil, err
		}
		s.index = ix
	}
	return s, nil
}

// Close releases the mapping if the segment owns one. Cells handed out as
// zero-copy views become invalid.
func (s *Segment) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}

// Kind returns the domain kind this segment stores.
func (s *Segment) Kind() Kind { return s.hdr.Kind }

// Compression returns the segment's cell compression mode.
func (s *Segment) Compression() Compression { return s.hdr.Compression }

// FirstRowKey returns the first row key the segment covers.
func (s *Segment) FirstRowKey() uint64 { return s.hdr.FirstRowKey }

// RowCount returns the number of row-key slots the segment covers,
// including absent rows.
func (s *Segment) RowCount() uint64 { return s.hdr.RowCount }

// LastRowKey returns the last row key the segment covers (inclusive).
func (s *Segment) LastRowKey() uint64 { return s.hdr.FirstRowKey + s.hdr.RowCount - 1 }

// HasHashIndex reports whether the segment can resolve content hashes.
func (s *Segment) HasHashIndex() bool { return s.index != nil }

// Cursor returns a fresh cursor over the segment. Cursors are cheap and
// single-call state; do not share one across goroutines.
func (s *Segment) Cursor() *Cursor {
	return &Cursor{seg: s}
}

// resolve maps a row key to a row ordinal. A miss (out of range, absent
// row, unknown hash) returns ok == false with no error; a hash key against
// an index-less segment is an error.
func (s *Segment) resolve(key RowKey) (uint64, bool, error) {
	var ord uint64
	if key.IsHash() {
		if s.index == nil {
			return 0, false, ErrNoHashIndex
		}
		var found bool
		ord, found = s.index.lookup(key.Hash())
		if !found {
			return 0, false, nil
		}
		if ord >= s.hdr.RowCount {
			return 0, false, fmt.Errorf("%w: hash index ordinal out of range", ErrCorrupted)
		}
	} else {
		n := key.Number()
		if n < s.hdr.FirstRowKey || n-s.hdr.FirstRowKey >= s.hdr.RowCount {
			return 0, false, nil
		}
		ord = n - s.hdr.FirstRowKey
	}

	if !s.presence.Contains(uint32(ord)) {
		return 0, false, nil
	}
	return ord, true, nil
}

// cell returns the decoded cell at (ordinal, column).
func (s *Segment) cell(ord uint64, col Column) ([]byte, error) {
	if int(col) >= int(s.hdr.Columns) {
		return nil, fmt.Errorf("segment: column %d out of range for %s segment", col, s.hdr.Kind)
	}

	idx := ord*uint64(s.hdr.Columns) + uint64(col)
	start := binary.LittleEndian.Uint64(s.offsets[idx*8:])
	end := binary.LittleEndian.Uint64(s.offsets[(idx+1)*8:])
	if start > end || end > uint64(len(s.cells)) {
		return nil, fmt.Errorf("%w: cell offsets out of range", ErrCorrupted)
	}

	return DecompressCell(s.hdr.Compression, s.cells[start:end])
}
