// Package coldstore provides read-only access to immutable, columnar,
// memory-mapped historical chain data: headers, transactions, receipts.
//
// Finalized chain history is published as segment files, each covering a
// contiguous row-key range of one kind. A Store discovers published
// segments by naming convention, lazily maps them, and routes domain
// queries to the segment covering the requested key. Hash-keyed lookups
// walk segments newest to oldest.
//
// Segments can live on local disk or in object storage:
//
//	store, err := coldstore.Open(ctx, coldstore.Local("/var/chaindata/segments"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	hdr, err := store.HeaderByNumber(ctx, 15_000_000)
//
// Remote segments are best combined with a local cache:
//
//	s3store, err := s3.New(ctx, "chain-segments", s3.WithPrefix("mainnet/"))
//	store, err := coldstore.Open(ctx,
//	    coldstore.Remote(s3store),
//	    coldstore.WithCacheDir("/var/cache/coldstore"),
//	    coldstore.WithDownloadRateLimit(64<<20),
//	)
//
// Queries that need knowledge the immutable history cannot hold (the
// chain head, transaction-to-block mappings) fail with
// provider.ErrUnsupported; callers route those to their live store.
package coldstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainkit/coldstore/blobstore"
	"github.com/chainkit/coldstore/manifest"
	"github.com/chainkit/coldstore/provider"
	"github.com/chainkit/coldstore/segment"
)

// ErrClosed is returned by queries against a closed store.
var ErrClosed = errors.New("coldstore: store is closed")

// Store routes chain-data queries to the published segment covering the
// requested key. It is safe for concurrent use.
type Store struct {
	blobs  blobstore.Store
	man    *manifest.Manifest
	logger *Logger

	mu     sync.Mutex
	mapped map[string]*mappedSegment
	closed bool
}

// mappedSegment pairs a parsed segment with the blob backing its bytes.
// The blob stays open for the segment's lifetime when the bytes alias a
// mapping.
type mappedSegment struct {
	seg  *segment.Segment
	blob blobstore.Blob
}

// Open opens a store over the configured segment source and loads the
// manifest. Segments are mapped lazily on first query.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}

	var blobs blobstore.Store
	switch {
	case o.dir != "" && o.remote != nil:
		return nil, errors.New("coldstore: Local and Remote are mutually exclusive")
	case o.dir != "":
		blobs = blobstore.NewLocalStore(o.dir)
	case o.remote != nil && o.cacheDir != "":
		blobs = blobstore.NewCachingStore(o.remote, o.cacheDir, o.limiter)
	case o.remote != nil:
		blobs = o.remote
	default:
		return nil, errors.New("coldstore: no segment source configured (use Local or Remote)")
	}

	names, err := blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("coldstore: list segments: %w", err)
	}
	man, err := manifest.New(names)
	if err != nil {
		return nil, err
	}

	s := &Store{
		blobs:  blobs,
		man:    man,
		logger: o.logger,
		mapped: make(map[string]*mappedSegment),
	}
	for _, kind := range man.Kinds() {
		highest, _ := man.HighestRowKey(kind)
		s.logger.Info("segments published",
			"kind", kind.String(),
			"count", len(man.Entries(kind)),
			"highest", highest,
		)
	}
	return s, nil
}

// Manifest returns the manifest snapshot the store was opened with.
func (s *Store) Manifest() *manifest.Manifest {
	return s.man
}

// HighestRowKey returns the highest published row key of kind.
func (s *Store) HighestRowKey(kind segment.Kind) (uint64, bool) {
	return s.man.HighestRowKey(kind)
}

// ProviderFor returns a provider over the segment of kind covering row key
// n. Receipt providers get the transaction segment covering the same range
// attached as their hash-lookup auxiliary. ok is false when no published
// segment covers n.
func (s *Store) ProviderFor(ctx context.Context, kind segment.Kind, n uint64) (*provider.SegmentProvider, bool, error) {
	entry, ok := s.man.Find(kind, n)
	if !ok {
		return nil, false, nil
	}
	seg, err := s.segmentFor(ctx, entry)
	if err != nil {
		return nil, false, err
	}

	p := provider.New(seg)
	if kind == segment.KindReceipts {
		// Receipt segments carry no hash index of their own; transaction
		// numbers key both kinds, so the matching transaction segment
		// resolves hashes for this one.
		if auxEntry, ok := s.man.Find(segment.KindTransactions, n); ok {
			auxSeg, err := s.segmentFor(ctx, auxEntry)
			if err != nil {
				return nil, false, err
			}
			p = p.WithAuxiliary(provider.New(auxSeg))
		}
	}
	return p, true, nil
}

func (s *Store) segmentFor(ctx context.Context, entry manifest.Entry) (*segment.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if m, ok := s.mapped[entry.Name]; ok {
		return m.seg, nil
	}

	blob, err := s.blobs.Open(ctx, entry.Name)
	if err != nil {
		return nil, fmt.Errorf("coldstore: open %s: %w", entry.Name, err)
	}

	var (
		seg       *segment.Segment
		keepsBlob bool
	)
	if m, ok := blob.(blobstore.Mappable); ok {
		// Zero copy: the segment aliases the mapping, so the blob must
		// outlive it.
		seg, err = segment.New(m.Bytes())
		keepsBlob = true
	} else {
		buf := make([]byte, blob.Size())
		if _, err = io.ReadFull(io.NewSectionReader(blob, 0, blob.Size()), buf); err == nil {
			seg, err = segment.New(buf)
		}
	}
	if err != nil {
		blob.Close()
		return nil, fmt.Errorf("coldstore: map %s: %w", entry.Name, err)
	}

	if err := checkEntry(entry, seg); err != nil {
		blob.Close()
		return nil, err
	}

	m := &mappedSegment{seg: seg}
	if keepsBlob {
		m.blob = blob
	} else {
		blob.Close()
	}
	s.mapped[entry.Name] = m

	s.logger.WithSegment(entry.Name).Debug("segment mapped",
		"kind", entry.Kind.String(),
		"rows", seg.RowCount(),
	)
	return seg, nil
}

// checkEntry verifies that the file's header agrees with the range its
// name publishes.
func checkEntry(entry manifest.Entry, seg *segment.Segment) error {
	if seg.Kind() != entry.Kind {
		return fmt.Errorf("coldstore: %s contains %s rows", entry.Name, seg.Kind())
	}
	if seg.FirstRowKey() != entry.First || seg.LastRowKey() != entry.Last {
		return fmt.Errorf("coldstore: %s covers [%d, %d], name claims [%d, %d]",
			entry.Name, seg.FirstRowKey(), seg.LastRowKey(), entry.First, entry.Last)
	}
	return nil
}

// walkNewestFirst visits a provider per published segment of kind, newest
// first, until fn reports done.
func (s *Store) walkNewestFirst(ctx context.Context, kind segment.Kind, fn func(p *provider.SegmentProvider) (bool, error)) error {
	entries := s.man.Entries(kind)
	for i := len(entries) - 1; i >= 0; i-- {
		seg, err := s.segmentFor(ctx, entries[i])
		if err != nil {
			return err
		}
		done, err := fn(provider.New(seg))
		if err != nil || done {
			return err
		}
	}
	return nil
}

// Header returns the header with the given block hash, searching segments
// newest to oldest.
func (s *Store) Header(ctx context.Context, hash common.Hash) (*types.Header, error) {
	var found *types.Header
	err := s.walkNewestFirst(ctx, segment.KindHeaders, func(p *provider.SegmentProvider) (bool, error) {
		hdr, err := p.Header(hash)
		found = hdr
		return hdr != nil, err
	})
	return found, err
}

// HeaderByNumber returns the header at block number n.
func (s *Store) HeaderByNumber(ctx context.Context, n uint64) (*types.Header, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindHeaders, n)
	if err != nil || !ok {
		return nil, err
	}
	return p.HeaderByNumber(n)
}

// HeaderTD returns the total difficulty of the block with the given hash.
func (s *Store) HeaderTD(ctx context.Context, hash common.Hash) (*big.Int, error) {
	var found *big.Int
	err := s.walkNewestFirst(ctx, segment.KindHeaders, func(p *provider.SegmentProvider) (bool, error) {
		td, err := p.HeaderTD(hash)
		found = td
		return td != nil, err
	})
	return found, err
}

// HeaderTDByNumber returns the total difficulty at block number n.
func (s *Store) HeaderTDByNumber(ctx context.Context, n uint64) (*big.Int, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindHeaders, n)
	if err != nil || !ok {
		return nil, err
	}
	return p.HeaderTDByNumber(n)
}

// SealedHeader returns the header at n paired with its stored hash.
func (s *Store) SealedHeader(ctx context.Context, n uint64) (*provider.SealedHeader, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindHeaders, n)
	if err != nil || !ok {
		return nil, err
	}
	return p.SealedHeader(n)
}

// HeadersRange returns the headers in [start, end), stitched across
// segment boundaries.
func (s *Store) HeadersRange(ctx context.Context, start, end uint64) ([]*types.Header, error) {
	var headers []*types.Header
	for _, entry := range s.man.Entries(segment.KindHeaders) {
		if entry.Last < start || entry.First >= end {
			continue
		}
		seg, err := s.segmentFor(ctx, entry)
		if err != nil {
			return nil, err
		}
		part, err := provider.New(seg).HeadersRange(provider.Included(start), provider.Excluded(end))
		if err != nil {
			return nil, err
		}
		headers = append(headers, part...)
	}
	return headers, nil
}

// BlockHash returns the canonical hash of block n.
func (s *Store) BlockHash(ctx context.Context, n uint64) (common.Hash, bool, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindHeaders, n)
	if err != nil || !ok {
		return common.Hash{}, false, err
	}
	return p.BlockHash(n)
}

// CanonicalHashesRange returns the canonical hashes in [start, end),
// stitched across segment boundaries.
func (s *Store) CanonicalHashesRange(ctx context.Context, start, end uint64) ([]common.Hash, error) {
	var hashes []common.Hash
	for _, entry := range s.man.Entries(segment.KindHeaders) {
		if entry.Last < start || entry.First >= end {
			continue
		}
		seg, err := s.segmentFor(ctx, entry)
		if err != nil {
			return nil, err
		}
		part, err := provider.New(seg).CanonicalHashesRange(start, end)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, part...)
	}
	return hashes, nil
}

// BlockNumber returns the number of the block with the given hash.
func (s *Store) BlockNumber(ctx context.Context, hash common.Hash) (uint64, bool, error) {
	var (
		num   uint64
		found bool
	)
	err := s.walkNewestFirst(ctx, segment.KindHeaders, func(p *provider.SegmentProvider) (bool, error) {
		n, ok, err := p.BlockNumber(hash)
		num, found = n, ok
		return ok, err
	})
	return num, found, err
}

// TransactionID returns the transaction number of the transaction with the
// given hash.
func (s *Store) TransactionID(ctx context.Context, hash common.Hash) (uint64, bool, error) {
	var (
		num   uint64
		found bool
	)
	err := s.walkNewestFirst(ctx, segment.KindTransactions, func(p *provider.SegmentProvider) (bool, error) {
		n, ok, err := p.TransactionID(hash)
		num, found = n, ok
		return ok, err
	})
	return num, found, err
}

// TransactionByID returns the transaction at number n.
func (s *Store) TransactionByID(ctx context.Context, n uint64) (*types.Transaction, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindTransactions, n)
	if err != nil || !ok {
		return nil, err
	}
	return p.TransactionByID(n)
}

// TransactionByHash returns the transaction with the given hash, searching
// segments newest to oldest.
func (s *Store) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var found *types.Transaction
	err := s.walkNewestFirst(ctx, segment.KindTransactions, func(p *provider.SegmentProvider) (bool, error) {
		tx, err := p.TransactionByHash(hash)
		found = tx
		return tx != nil, err
	})
	return found, err
}

// TransactionSender recovers the signer of the transaction at number n.
func (s *Store) TransactionSender(ctx context.Context, n uint64) (common.Address, bool, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindTransactions, n)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return p.TransactionSender(n)
}

// SendersByTxRange recovers the signers of all transactions in [start,
// end), stitched across segment boundaries. Recovery is all-or-nothing.
func (s *Store) SendersByTxRange(ctx context.Context, start, end uint64) ([]common.Address, error) {
	var txs []provider.StoredTransaction
	for _, entry := range s.man.Entries(segment.KindTransactions) {
		if entry.Last < start || entry.First >= end {
			continue
		}
		seg, err := s.segmentFor(ctx, entry)
		if err != nil {
			return nil, err
		}
		part, err := provider.New(seg).TransactionsByTxRange(provider.Included(start), provider.Excluded(end))
		if err != nil {
			return nil, err
		}
		txs = append(txs, part...)
	}
	return provider.RecoverSenders(txs, len(txs))
}

// Receipt returns the receipt at transaction number n.
func (s *Store) Receipt(ctx context.Context, n uint64) (*types.Receipt, error) {
	p, ok, err := s.ProviderFor(ctx, segment.KindReceipts, n)
	if err != nil || !ok {
		return nil, err
	}
	return p.Receipt(n)
}

// ReceiptByHash returns the receipt of the transaction with the given
// hash. The hash is resolved through the transaction segments, then the
// receipt is read at the resolved number.
func (s *Store) ReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	n, ok, err := s.TransactionID(ctx, hash)
	if err != nil || !ok {
		return nil, err
	}
	return s.Receipt(ctx, n)
}

// Close releases all segment mappings. The store is unusable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for name, m := range s.mapped {
		if err := m.seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if m.blob != nil {
			if err := m.blob.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(s.mapped, name)
	}
	s.logger.Info("store closed")
	return firstErr
}
