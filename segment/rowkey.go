package segment

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// RowKey positions a cursor within a segment. It is either a numeric row
// key (block or transaction number) or a content hash resolved through the
// segment's hash index.
type RowKey struct {
	number uint64
	hash   common.Hash
	byHash bool
}

// NumberKey returns a RowKey addressing the row at numeric key n.
func NumberKey(n uint64) RowKey {
	return RowKey{number: n}
}

// HashKey returns a RowKey addressing the row whose content hash is h.
func HashKey(h common.Hash) RowKey {
	return RowKey{hash: h, byHash: true}
}

// IsHash reports whether the key is a content hash.
func (k RowKey) IsHash() bool { return k.byHash }

// Number returns the numeric row key. Only meaningful when !IsHash().
func (k RowKey) Number() uint64 { return k.number }

// Hash returns the content hash. Only meaningful when IsHash().
func (k RowKey) Hash() common.Hash { return k.hash }

func (k RowKey) String() string {
	if k.byHash {
		return k.hash.Hex()
	}
	return fmt.Sprintf("#%d", k.number)
}

// ColumnMask is an ordered descriptor of which one or two columns to decode
// from a row. The decode order of GetTwo follows the mask's declaration
// order, not the physical column order.
type ColumnMask struct {
	cols [2]Column
	n    int
}

// MaskOf builds a mask over one or two columns.
// It panics on any other arity; masks are package-level constants in
// practice, so a bad arity is a programming error.
func MaskOf(cols ...Column) ColumnMask {
	if len(cols) == 0 || len(cols) > 2 {
		panic(fmt.Sprintf("segment: mask arity %d", len(cols)))
	}
	var m ColumnMask
	m.n = copy(m.cols[:], cols)
	return m
}

// Arity returns the number of columns the mask selects.
func (m ColumnMask) Arity() int { return m.n }

func (m ColumnMask) column(i int) Column { return m.cols[i] }
