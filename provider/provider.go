// Package provider implements the read-side query surface over immutable
// chain-data segments.
//
// A SegmentProvider binds a cursor factory to exactly one segment and
// composes masked column reads into the same domain query surface the live
// mutable store exposes, so callers need not know which backing store
// answered a query. Queries that require knowledge a single immutable
// segment cannot hold (the chain head, transaction-to-block mappings) fail
// with ErrUnsupported and must be routed to the live store by the caller.
package provider

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/chainkit/coldstore/segment"
)

// Column masks for the three segment kinds.
var (
	headerMask     = segment.MaskOf(segment.ColHeader)
	headerHashMask = segment.MaskOf(segment.ColHeader, segment.ColBlockHash)
	tdMask         = segment.MaskOf(segment.ColTotalDifficulty)
	tdHashMask     = segment.MaskOf(segment.ColTotalDifficulty, segment.ColBlockHash)
	blockHashMask  = segment.MaskOf(segment.ColBlockHash)
	txMask         = segment.MaskOf(segment.ColTransaction)
	receiptMask    = segment.MaskOf(segment.ColReceipt)
)

// SegmentProvider serves domain queries from one immutable segment.
//
// A provider holds no mutable state across calls; every query runs on a
// fresh cursor. Instances over distinct cursors may be used concurrently,
// but a single provider call sequence is not reentrant.
type SegmentProvider struct {
	seg *segment.Segment

	// aux resolves lookups the primary segment does not index itself, in
	// the observed usage a transaction segment attached to a receipt
	// provider. The chain is bounded and non-cyclic with depth one.
	aux *SegmentProvider
}

var _ Reader = (*SegmentProvider)(nil)

// New returns a provider over the given segment.
func New(seg *segment.Segment) *SegmentProvider {
	return &SegmentProvider{seg: seg}
}

// WithAuxiliary attaches an auxiliary provider over a different segment
// kind and returns the receiver. The auxiliary is owned by the provider
// and shares its lifetime bound.
func (p *SegmentProvider) WithAuxiliary(aux *SegmentProvider) *SegmentProvider {
	p.aux = aux
	return p
}

// Segment returns the backing segment.
func (p *SegmentProvider) Segment() *segment.Segment {
	return p.seg
}

func (p *SegmentProvider) cursor() *segment.Cursor {
	return p.seg.Cursor()
}

// clamp bounds a normalized range by the segment's published row range, so
// an unbounded end never iterates past the segment tail.
func (p *SegmentProvider) clamp(r Range) Range {
	if first := p.seg.FirstRowKey(); r.Start < first {
		r.Start = first
	}
	if end := p.seg.LastRowKey() + 1; r.End > end {
		r.End = end
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// getPairChecked decodes the (value, hash) column pair at the row the hash
// index resolves to and keeps the value only when the stored hash equals
// want. The re-check guards against an index resolving to an adjacent or
// stale row: a mismatch is "not found", never a wrong result.
func getPairChecked(c *segment.Cursor, mask segment.ColumnMask, want common.Hash) ([]byte, error) {
	v, h, err := c.GetTwo(mask, segment.HashKey(want))
	if err != nil || v == nil {
		return nil, err
	}
	if common.BytesToHash(h) != want {
		return nil, nil
	}
	return v, nil
}

func decodeHeader(data []byte) (*types.Header, error) {
	hdr := new(types.Header)
	if err := rlp.DecodeBytes(data, hdr); err != nil {
		return nil, err
	}
	return hdr, nil
}

func decodeReceipt(data []byte) (*types.Receipt, error) {
	receipt := new(types.Receipt)
	if err := rlp.DecodeBytes(data, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Header queries.

// Header implements HeaderReader.
func (p *SegmentProvider) Header(hash common.Hash) (*types.Header, error) {
	v, err := getPairChecked(p.cursor(), headerHashMask, hash)
	if err != nil || v == nil {
		return nil, err
	}
	return decodeHeader(v)
}

// HeaderByNumber implements HeaderReader. The key is the row key itself,
// so no hash validation is needed.
func (p *SegmentProvider) HeaderByNumber(n uint64) (*types.Header, error) {
	v, err := p.cursor().GetOne(headerMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return nil, err
	}
	return decodeHeader(v)
}

// HeaderTD implements HeaderReader.
func (p *SegmentProvider) HeaderTD(hash common.Hash) (*big.Int, error) {
	v, err := getPairChecked(p.cursor(), tdHashMask, hash)
	if err != nil || v == nil {
		return nil, err
	}
	return new(big.Int).SetBytes(v), nil
}

// HeaderTDByNumber implements HeaderReader.
func (p *SegmentProvider) HeaderTDByNumber(n uint64) (*big.Int, error) {
	v, err := p.cursor().GetOne(tdMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return nil, err
	}
	return new(big.Int).SetBytes(v), nil
}

// HeadersRange implements HeaderReader.
func (p *SegmentProvider) HeadersRange(start, end Bound) ([]*types.Header, error) {
	r := p.clamp(NormalizeRange(start, end))
	c := p.cursor()

	headers := make([]*types.Header, 0, r.Len())
	for n := r.Start; n < r.End; n++ {
		v, err := c.GetOne(headerMask, segment.NumberKey(n))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		hdr, err := decodeHeader(v)
		if err != nil {
			return nil, err
		}
		headers = append(headers, hdr)
	}
	return headers, nil
}

// SealedHeadersRange implements HeaderReader.
func (p *SegmentProvider) SealedHeadersRange(start, end Bound) ([]SealedHeader, error) {
	r := p.clamp(NormalizeRange(start, end))
	c := p.cursor()

	sealed := make([]SealedHeader, 0, r.Len())
	for n := r.Start; n < r.End; n++ {
		v, h, err := c.GetTwo(headerHashMask, segment.NumberKey(n))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		hdr, err := decodeHeader(v)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, SealedHeader{Header: hdr, Hash: common.BytesToHash(h)})
	}
	return sealed, nil
}

// SealedHeader implements HeaderReader.
func (p *SegmentProvider) SealedHeader(n uint64) (*SealedHeader, error) {
	v, h, err := p.cursor().GetTwo(headerHashMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return nil, err
	}
	hdr, err := decodeHeader(v)
	if err != nil {
		return nil, err
	}
	return &SealedHeader{Header: hdr, Hash: common.BytesToHash(h)}, nil
}

// Block hash and number queries.

// BlockHash implements BlockHashReader.
func (p *SegmentProvider) BlockHash(n uint64) (common.Hash, bool, error) {
	v, err := p.cursor().GetOne(blockHashMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(v), true, nil
}

// CanonicalHashesRange implements BlockHashReader.
func (p *SegmentProvider) CanonicalHashesRange(start, end uint64) ([]common.Hash, error) {
	r := p.clamp(Range{Start: start, End: end})
	c := p.cursor()

	hashes := make([]common.Hash, 0, r.Len())
	for n := r.Start; n < r.End; n++ {
		v, err := c.GetOne(blockHashMask, segment.NumberKey(n))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		hashes = append(hashes, common.BytesToHash(v))
	}
	return hashes, nil
}

// ChainInfo implements BlockNumReader. Chain-head knowledge lives in the
// live database, never in an immutable segment.
func (p *SegmentProvider) ChainInfo() (ChainInfo, error) {
	return ChainInfo{}, ErrUnsupported
}

// BestBlockNumber implements BlockNumReader.
func (p *SegmentProvider) BestBlockNumber() (uint64, error) {
	return 0, ErrUnsupported
}

// LastBlockNumber implements BlockNumReader.
func (p *SegmentProvider) LastBlockNumber() (uint64, error) {
	return 0, ErrUnsupported
}

// BlockNumber implements BlockNumReader. The cursor reports the row key of
// its last successful decode, which is the number the hash resolved to.
func (p *SegmentProvider) BlockNumber(hash common.Hash) (uint64, bool, error) {
	c := p.cursor()
	v, err := c.GetOne(blockHashMask, segment.HashKey(hash))
	if err != nil || v == nil {
		return 0, false, err
	}
	if common.BytesToHash(v) != hash {
		return 0, false, nil
	}
	return c.Number(), true, nil
}

// Transaction queries.

// TransactionID implements TransactionReader. The stored record's hash is
// materialized only to perform the equality check.
func (p *SegmentProvider) TransactionID(hash common.Hash) (uint64, bool, error) {
	c := p.cursor()
	v, err := c.GetOne(txMask, segment.HashKey(hash))
	if err != nil || v == nil {
		return 0, false, err
	}
	if StoredTransaction(v).Hash() != hash {
		return 0, false, nil
	}
	return c.Number(), true, nil
}

// TransactionByID implements TransactionReader.
func (p *SegmentProvider) TransactionByID(n uint64) (*types.Transaction, error) {
	st, err := p.TransactionByIDNoHash(n)
	if err != nil || st == nil {
		return nil, err
	}
	tx, err := st.Decode()
	if err != nil {
		return nil, err
	}
	// Callers of this API expect a hash-bearing value.
	tx.Hash()
	return tx, nil
}

// TransactionByIDNoHash implements TransactionReader. This is the cheaper
// path for callers that do not need a hash.
func (p *SegmentProvider) TransactionByIDNoHash(n uint64) (StoredTransaction, error) {
	v, err := p.cursor().GetOne(txMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return nil, err
	}
	return StoredTransaction(v), nil
}

// TransactionByHash implements TransactionReader.
func (p *SegmentProvider) TransactionByHash(hash common.Hash) (*types.Transaction, error) {
	v, err := p.cursor().GetOne(txMask, segment.HashKey(hash))
	if err != nil || v == nil {
		return nil, err
	}
	st := StoredTransaction(v)
	if st.Hash() != hash {
		return nil, nil
	}
	return st.Decode()
}

// TransactionByHashWithMeta implements TransactionReader. Block context
// requires a transaction-to-block index the segment does not carry.
func (p *SegmentProvider) TransactionByHashWithMeta(hash common.Hash) (*types.Transaction, *TransactionMeta, error) {
	return nil, nil, ErrUnsupported
}

// TransactionBlock implements TransactionReader.
func (p *SegmentProvider) TransactionBlock(n uint64) (uint64, bool, error) {
	return 0, false, ErrUnsupported
}

// TransactionsByBlock implements TransactionReader. The live index must
// resolve the block to a transaction-number range first; callers then use
// TransactionsByTxRange.
func (p *SegmentProvider) TransactionsByBlock(block segment.RowKey) ([]*types.Transaction, error) {
	return nil, ErrUnsupported
}

// TransactionsByBlockRange implements TransactionReader.
func (p *SegmentProvider) TransactionsByBlockRange(start, end Bound) ([][]*types.Transaction, error) {
	return nil, ErrUnsupported
}

// TransactionsByTxRange implements TransactionReader.
func (p *SegmentProvider) TransactionsByTxRange(start, end Bound) ([]StoredTransaction, error) {
	r := p.clamp(NormalizeRange(start, end))
	c := p.cursor()

	txs := make([]StoredTransaction, 0, r.Len())
	for n := r.Start; n < r.End; n++ {
		v, err := c.GetOne(txMask, segment.NumberKey(n))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		txs = append(txs, StoredTransaction(v))
	}
	return txs, nil
}

// SendersByTxRange implements TransactionReader.
func (p *SegmentProvider) SendersByTxRange(start, end Bound) ([]common.Address, error) {
	txs, err := p.TransactionsByTxRange(start, end)
	if err != nil {
		return nil, err
	}
	return RecoverSenders(txs, len(txs))
}

// TransactionSender implements TransactionReader. Unlike the strict batch
// path, the single-row path tolerates recovery failure by omission.
func (p *SegmentProvider) TransactionSender(n uint64) (common.Address, bool, error) {
	st, err := p.TransactionByIDNoHash(n)
	if err != nil || st == nil {
		return common.Address{}, false, err
	}
	tx, err := st.Decode()
	if err != nil {
		return common.Address{}, false, err
	}
	from, err := recoverSender(tx)
	if err != nil {
		return common.Address{}, false, nil
	}
	return from, true, nil
}

// Receipt queries.

// Receipt implements ReceiptReader.
func (p *SegmentProvider) Receipt(n uint64) (*types.Receipt, error) {
	v, err := p.cursor().GetOne(receiptMask, segment.NumberKey(n))
	if err != nil || v == nil {
		return nil, err
	}
	return decodeReceipt(v)
}

// ReceiptByHash implements ReceiptReader. Receipt segments store no hash
// index of their own; the auxiliary transaction provider resolves the hash
// into a transaction number, trading one indirect read for not duplicating
// the index.
func (p *SegmentProvider) ReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	if p.aux == nil {
		return nil, nil
	}
	n, ok, err := p.aux.TransactionID(hash)
	if err != nil || !ok {
		return nil, err
	}
	return p.Receipt(n)
}

// ReceiptsByBlock implements ReceiptReader. Callers must obtain the
// block's transaction-number range externally and call Receipt per member.
func (p *SegmentProvider) ReceiptsByBlock(block segment.RowKey) ([]*types.Receipt, error) {
	return nil, ErrUnsupported
}
