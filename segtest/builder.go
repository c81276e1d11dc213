// Package segtest builds well-formed segment files for tests.
//
// It is fixture tooling only: the production surface of this module is
// read-only, and nothing outside _test files should import segtest.
package segtest

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chainkit/coldstore/segment"
)

type row struct {
	cells   [][]byte
	present bool
}

// Builder assembles one segment file row by row.
type Builder struct {
	kind  segment.Kind
	comp  segment.Compression
	first uint64
	rows  []row
	index []segment.HashIndexEntry
}

// NewBuilder starts a segment of the given kind whose first row key is
// firstRowKey.
func NewBuilder(kind segment.Kind, firstRowKey uint64) *Builder {
	return &Builder{kind: kind, first: firstRowKey}
}

// WithCompression sets the cell compression mode (default none).
func (b *Builder) WithCompression(c segment.Compression) *Builder {
	b.comp = c
	return b
}

// AppendRow appends a present row at the next row key. The number of cells
// must match the kind's column count.
func (b *Builder) AppendRow(cells ...[]byte) *Builder {
	b.rows = append(b.rows, row{cells: cells, present: true})
	return b
}

// AppendIndexedRow appends a present row and registers hash in the
// segment's hash index for it.
func (b *Builder) AppendIndexedRow(hash common.Hash, cells ...[]byte) *Builder {
	b.index = append(b.index, segment.HashIndexEntry{Hash: hash, Ordinal: uint64(len(b.rows))})
	return b.AppendRow(cells...)
}

// SkipRow leaves the next row key absent.
func (b *Builder) SkipRow() *Builder {
	b.rows = append(b.rows, row{})
	return b
}

// IndexHash registers hash for an arbitrary ordinal without appending a
// row. Tests use this to fabricate a stale or mispointing index entry.
func (b *Builder) IndexHash(hash common.Hash, ordinal uint64) *Builder {
	b.index = append(b.index, segment.HashIndexEntry{Hash: hash, Ordinal: ordinal})
	return b
}

// Build serializes the segment file.
func (b *Builder) Build() ([]byte, error) {
	cols := b.kind.Columns()
	if cols == 0 {
		return nil, fmt.Errorf("segtest: invalid kind %d", b.kind)
	}
	if len(b.rows) == 0 {
		return nil, fmt.Errorf("segtest: segment needs at least one row")
	}

	var cells []byte
	offsets := make([]uint64, 0, len(b.rows)*cols+1)
	presence := roaring.New()

	for ord, r := range b.rows {
		if !r.present {
			for c := 0; c < cols; c++ {
				offsets = append(offsets, uint64(len(cells)))
			}
			continue
		}
		if len(r.cells) != cols {
			return nil, fmt.Errorf("segtest: row %d has %d cells, want %d", ord, len(r.cells), cols)
		}
		presence.Add(uint32(ord))
		for _, cell := range r.cells {
			stored, err := segment.CompressCell(b.comp, cell)
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, uint64(len(cells)))
			cells = append(cells, stored...)
		}
	}
	offsets = append(offsets, uint64(len(cells)))

	offsetsBytes := make([]byte, 0, len(offsets)*8)
	for _, off := range offsets {
		offsetsBytes = binary.LittleEndian.AppendUint64(offsetsBytes, off)
	}

	presenceBytes, err := presence.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var indexBytes []byte
	if len(b.index) > 0 {
		indexBytes, err = segment.BuildHashIndex(b.index)
		if err != nil {
			return nil, err
		}
	}

	hdr := segment.FileHeader{
		Kind:        b.kind,
		Compression: b.comp,
		Columns:     uint8(cols),
		FirstRowKey: b.first,
		RowCount:    uint64(len(b.rows)),
	}
	hdr.DataOffset = segment.HeaderSize
	hdr.OffsetsOffset = hdr.DataOffset + uint64(len(cells))
	hdr.PresenceOffset = hdr.OffsetsOffset + uint64(len(offsetsBytes))
	if len(indexBytes) > 0 {
		hdr.IndexOffset = hdr.PresenceOffset + uint64(len(presenceBytes))
	}

	body := make([]byte, 0, len(cells)+len(offsetsBytes)+len(presenceBytes)+len(indexBytes))
	body = append(body, cells...)
	body = append(body, offsetsBytes...)
	body = append(body, presenceBytes...)
	body = append(body, indexBytes...)
	hdr.Checksum = crc32.ChecksumIEEE(body)

	hdrBytes, err := hdr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(hdrBytes, body...), nil
}

// Open builds the segment and parses it back, handing the caller a ready
// read handle.
func (b *Builder) Open() (*segment.Segment, error) {
	data, err := b.Build()
	if err != nil {
		return nil, err
	}
	return segment.New(data)
}

// WriteFile builds the segment and writes it to path.
func (b *Builder) WriteFile(path string) error {
	data, err := b.Build()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
