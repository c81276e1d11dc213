package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic identifies coldstore segment files (ASCII: "CSG1").
	Magic = 0x43534731
	// Version is the current segment file format version.
	Version = 1

	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 72
)

var (
	// ErrInvalidMagic indicates the file is not a coldstore segment.
	ErrInvalidMagic = errors.New("segment: invalid magic number")
	// ErrInvalidVersion indicates an unsupported format version.
	ErrInvalidVersion = errors.New("segment: unsupported version")
	// ErrInvalidKind indicates an unknown segment kind byte.
	ErrInvalidKind = errors.New("segment: invalid segment kind")
	// ErrCorrupted indicates a structurally invalid segment file
	// (section bounds, offset table, empty row range).
	ErrCorrupted = errors.New("segment: corrupted segment file")
	// ErrNoHashIndex is returned for hash-keyed reads against a segment
	// that carries no hash index (e.g. receipts).
	ErrNoHashIndex = errors.New("segment: segment has no hash index")
)

// ChecksumMismatchError indicates the file body does not match the checksum
// recorded in the header.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("segment: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Kind identifies the domain kind a segment stores. Each segment holds
// exactly one kind over a contiguous, closed row-key range.
type Kind uint8

const (
	// KindHeaders stores block headers keyed by block number.
	KindHeaders Kind = 1
	// KindTransactions stores signed transactions keyed by transaction number.
	KindTransactions Kind = 2
	// KindReceipts stores receipts keyed by transaction number.
	KindReceipts Kind = 3
)

// Valid reports whether k is a known segment kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHeaders, KindTransactions, KindReceipts:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindHeaders:
		return "headers"
	case KindTransactions:
		return "transactions"
	case KindReceipts:
		return "receipts"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Columns returns the number of logical columns rows of this kind carry.
func (k Kind) Columns() int {
	switch k {
	case KindHeaders:
		return 3
	case KindTransactions, KindReceipts:
		return 1
	}
	return 0
}

// Column identifies one logical column of a row. Column numbering is
// per-kind; see the constants below.
type Column uint8

// Header segment columns.
const (
	ColHeader          Column = 0
	ColTotalDifficulty Column = 1
	ColBlockHash       Column = 2
)

// Transaction segment column. Transactions are stored without their cached
// hash; the hash is materialized on demand from the signed payload.
const ColTransaction Column = 0

// Receipt segment column. Receipt segments carry no hash index; hash-keyed
// receipt lookups go through a transaction-segment auxiliary provider.
const ColReceipt Column = 0

// FileHeader is the fixed 72-byte header at the start of every segment file.
//
// All section offsets are absolute file offsets. Sections are laid out in
// order: cells, offset table, presence bitmap, hash index; each section's
// length is implied by the next offset (or end of file). IndexOffset == 0
// means the segment has no hash index. Checksum is the CRC32 (IEEE) of all
// bytes after the header.
type FileHeader struct {
	Kind        Kind
	Compression Compression
	Columns     uint8

	FirstRowKey uint64
	RowCount    uint64

	DataOffset     uint64
	OffsetsOffset  uint64
	PresenceOffset uint64
	IndexOffset    uint64

	Checksum uint32
}

// MarshalBinary encodes the header into its fixed 72-byte layout.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint32(out[4:8], Version)
	out[8] = uint8(h.Kind)
	out[9] = uint8(h.Compression)
	out[10] = h.Columns
	// bytes 11..16 reserved
	binary.LittleEndian.PutUint64(out[16:24], h.FirstRowKey)
	binary.LittleEndian.PutUint64(out[24:32], h.RowCount)
	binary.LittleEndian.PutUint64(out[32:40], h.DataOffset)
	binary.LittleEndian.PutUint64(out[40:48], h.OffsetsOffset)
	binary.LittleEndian.PutUint64(out[48:56], h.PresenceOffset)
	binary.LittleEndian.PutUint64(out[56:64], h.IndexOffset)
	binary.LittleEndian.PutUint32(out[64:68], h.Checksum)
	return out, nil
}

// parseFileHeader decodes and validates the fixed header fields.
// Section bounds are validated by the caller against the file size.
func parseFileHeader(data []byte) (FileHeader, error) {
	var h FileHeader
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: file smaller than header", ErrCorrupted)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return h, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != Version {
		return h, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	h.Kind = Kind(data[8])
	h.Compression = Compression(data[9])
	h.Columns = data[10]
	h.FirstRowKey = binary.LittleEndian.Uint64(data[16:24])
	h.RowCount = binary.LittleEndian.Uint64(data[24:32])
	h.DataOffset = binary.LittleEndian.Uint64(data[32:40])
	h.OffsetsOffset = binary.LittleEndian.Uint64(data[40:48])
	h.PresenceOffset = binary.LittleEndian.Uint64(data[48:56])
	h.IndexOffset = binary.LittleEndian.Uint64(data[56:64])
	h.Checksum = binary.LittleEndian.Uint32(data[64:68])

	if !h.Kind.Valid() {
		return h, fmt.Errorf("%w: %d", ErrInvalidKind, data[8])
	}
	if !h.Compression.Valid() {
		return h, fmt.Errorf("%w: unknown compression %d", ErrCorrupted, data[9])
	}
	if int(h.Columns) != h.Kind.Columns() {
		return h, fmt.Errorf("%w: %s segment with %d columns", ErrCorrupted, h.Kind, h.Columns)
	}
	if h.RowCount == 0 {
		return h, fmt.Errorf("%w: empty row range", ErrCorrupted)
	}
	if h.FirstRowKey+h.RowCount < h.FirstRowKey {
		return h, fmt.Errorf("%w: row range overflows", ErrCorrupted)
	}
	return h, nil
}
