package segment

import "fmt"

// Cursor is a stateful reader over one segment. It decodes masked columns
// at a row key and remembers the row key of the last successful decode,
// which hash-keyed callers use to learn the numeric position the hash
// resolved to.
//
// A Cursor is not safe for concurrent use; take a fresh one per call.
type Cursor struct {
	seg *Segment
	num uint64
}

// GetOne decodes the single column selected by mask at key.
// A miss returns (nil, nil).
func (c *Cursor) GetOne(mask ColumnMask, key RowKey) ([]byte, error) {
	if mask.Arity() != 1 {
		return nil, fmt.Errorf("segment: GetOne with %d-column mask", mask.Arity())
	}

	ord, ok, err := c.seg.resolve(key)
	if err != nil || !ok {
		return nil, err
	}

	v, err := c.seg.cell(ord, mask.column(0))
	if err != nil {
		return nil, err
	}
	c.num = c.seg.hdr.FirstRowKey + ord
	return v, nil
}

// GetTwo decodes the two columns selected by mask at key, in mask order.
// A miss returns (nil, nil, nil).
func (c *Cursor) GetTwo(mask ColumnMask, key RowKey) ([]byte, []byte, error) {
	if mask.Arity() != 2 {
		return nil, nil, fmt.Errorf("segment: GetTwo with %d-column mask", mask.Arity())
	}

	ord, ok, err := c.seg.resolve(key)
	if err != nil || !ok {
		return nil, nil, err
	}

	a, err := c.seg.cell(ord, mask.column(0))
	if err != nil {
		return nil, nil, err
	}
	b, err := c.seg.cell(ord, mask.column(1))
	if err != nil {
		return nil, nil, err
	}
	c.num = c.seg.hdr.FirstRowKey + ord
	return a, b, nil
}

// Number returns the row key of the last successfully decoded row.
func (c *Cursor) Number() uint64 {
	return c.num
}
