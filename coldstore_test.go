package coldstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/coldstore"
	"github.com/chainkit/coldstore/blobstore"
	"github.com/chainkit/coldstore/manifest"
	"github.com/chainkit/coldstore/segment"
	"github.com/chainkit/coldstore/segtest"
)

// writeHeaderSegment publishes a header segment covering [first, last]
// into dir and returns the block hashes in row order.
func writeHeaderSegment(t *testing.T, dir string, first, last uint64) []common.Hash {
	t.Helper()

	b := segtest.NewBuilder(segment.KindHeaders, first)
	var hashes []common.Hash
	for n := first; n <= last; n++ {
		h := segtest.MakeHeader(n)
		hash := h.Hash()
		hashes = append(hashes, hash)
		b.AppendIndexedRow(hash, segtest.EncodeHeader(h), segtest.TDBytes(h.Difficulty), hash.Bytes())
	}
	require.NoError(t, b.WriteFile(filepath.Join(dir, manifest.EntryName(segment.KindHeaders, first, last))))
	return hashes
}

// writeTxSegment publishes a transaction segment whose row at first+i
// holds txs[i].
func writeTxSegment(t *testing.T, dir string, first uint64, txs []*types.Transaction) {
	t.Helper()

	b := segtest.NewBuilder(segment.KindTransactions, first)
	for _, tx := range txs {
		b.AppendIndexedRow(tx.Hash(), segtest.EncodeTx(tx))
	}
	last := first + uint64(len(txs)) - 1
	require.NoError(t, b.WriteFile(filepath.Join(dir, manifest.EntryName(segment.KindTransactions, first, last))))
}

func writeReceiptSegment(t *testing.T, dir string, first uint64, receipts []*types.Receipt) {
	t.Helper()

	b := segtest.NewBuilder(segment.KindReceipts, first)
	for _, r := range receipts {
		b.AppendRow(segtest.EncodeReceipt(r))
	}
	last := first + uint64(len(receipts)) - 1
	require.NoError(t, b.WriteFile(filepath.Join(dir, manifest.EntryName(segment.KindReceipts, first, last))))
}

func makeTxs(nonces ...uint64) []*types.Transaction {
	txs := make([]*types.Transaction, len(nonces))
	for i, nonce := range nonces {
		txs[i] = segtest.MakeSignedTx(nonce)
	}
	return txs
}

func openStore(t *testing.T, dir string) *coldstore.Store {
	t.Helper()
	store, err := coldstore.Open(context.Background(), coldstore.Local(dir))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreHeaderQueries(t *testing.T) {
	dir := t.TempDir()
	older := writeHeaderSegment(t, dir, 0, 4)
	newer := writeHeaderSegment(t, dir, 5, 9)
	store := openStore(t, dir)
	ctx := context.Background()

	t.Run("by number routes to covering segment", func(t *testing.T) {
		hdr, err := store.HeaderByNumber(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, hdr)
		require.Equal(t, older[2], hdr.Hash())

		hdr, err = store.HeaderByNumber(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, hdr)
		require.Equal(t, newer[2], hdr.Hash())

		hdr, err = store.HeaderByNumber(ctx, 10)
		require.NoError(t, err)
		require.Nil(t, hdr)
	})

	t.Run("by hash walks all segments", func(t *testing.T) {
		hdr, err := store.Header(ctx, older[1])
		require.NoError(t, err)
		require.NotNil(t, hdr)
		require.Equal(t, uint64(1), hdr.Number.Uint64())

		hdr, err = store.Header(ctx, common.HexToHash("0xdead"))
		require.NoError(t, err)
		require.Nil(t, hdr)
	})

	t.Run("block number and hash", func(t *testing.T) {
		n, ok, err := store.BlockNumber(ctx, newer[0])
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(5), n)

		hash, ok, err := store.BlockHash(ctx, 5)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, newer[0], hash)
	})

	t.Run("td", func(t *testing.T) {
		td, err := store.HeaderTDByNumber(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, segtest.MakeHeader(3).Difficulty, td)

		td, err = store.HeaderTD(ctx, newer[4])
		require.NoError(t, err)
		require.Equal(t, segtest.MakeHeader(9).Difficulty, td)
	})

	t.Run("sealed header", func(t *testing.T) {
		sealed, err := store.SealedHeader(ctx, 6)
		require.NoError(t, err)
		require.NotNil(t, sealed)
		require.Equal(t, newer[1], sealed.Hash)
	})

	t.Run("ranges stitch across segments", func(t *testing.T) {
		headers, err := store.HeadersRange(ctx, 3, 8)
		require.NoError(t, err)
		require.Len(t, headers, 5)
		require.Equal(t, uint64(3), headers[0].Number.Uint64())
		require.Equal(t, uint64(7), headers[4].Number.Uint64())

		hashes, err := store.CanonicalHashesRange(ctx, 3, 8)
		require.NoError(t, err)
		require.Equal(t, append(append([]common.Hash{}, older[3:]...), newer[:3]...), hashes)
	})

	t.Run("highest row key", func(t *testing.T) {
		highest, ok := store.HighestRowKey(segment.KindHeaders)
		require.True(t, ok)
		require.Equal(t, uint64(9), highest)

		_, ok = store.HighestRowKey(segment.KindReceipts)
		require.False(t, ok)
	})
}

func TestStoreTransactionQueries(t *testing.T) {
	dir := t.TempDir()
	older := makeTxs(0, 1, 2)
	newer := makeTxs(3, 4)
	writeTxSegment(t, dir, 0, older)
	writeTxSegment(t, dir, 3, newer)
	store := openStore(t, dir)
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		tx, err := store.TransactionByID(ctx, 4)
		require.NoError(t, err)
		require.NotNil(t, tx)
		require.Equal(t, newer[1].Hash(), tx.Hash())
	})

	t.Run("by hash walks all segments", func(t *testing.T) {
		tx, err := store.TransactionByHash(ctx, older[0].Hash())
		require.NoError(t, err)
		require.NotNil(t, tx)
		require.Equal(t, older[0].Hash(), tx.Hash())
	})

	t.Run("id by hash", func(t *testing.T) {
		n, ok, err := store.TransactionID(ctx, older[2].Hash())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(2), n)
	})

	t.Run("sender", func(t *testing.T) {
		from, ok, err := store.TransactionSender(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, segtest.TestSender, from)
	})

	t.Run("senders range stitches across segments", func(t *testing.T) {
		senders, err := store.SendersByTxRange(ctx, 1, 5)
		require.NoError(t, err)
		require.Len(t, senders, 4)
		for _, from := range senders {
			require.Equal(t, segtest.TestSender, from)
		}
	})
}

func TestStoreReceiptQueries(t *testing.T) {
	dir := t.TempDir()
	txs := makeTxs(0, 1)
	writeTxSegment(t, dir, 0, txs)
	writeReceiptSegment(t, dir, 0, []*types.Receipt{
		segtest.MakeReceipt(21_000),
		segtest.MakeReceipt(42_000),
	})
	store := openStore(t, dir)
	ctx := context.Background()

	t.Run("by number", func(t *testing.T) {
		r, err := store.Receipt(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, r)
		require.Equal(t, uint64(42_000), r.CumulativeGasUsed)
	})

	t.Run("by hash resolves through transaction segments", func(t *testing.T) {
		r, err := store.ReceiptByHash(ctx, txs[0].Hash())
		require.NoError(t, err)
		require.NotNil(t, r)
		require.Equal(t, uint64(21_000), r.CumulativeGasUsed)

		r, err = store.ReceiptByHash(ctx, common.HexToHash("0xdead"))
		require.NoError(t, err)
		require.Nil(t, r)
	})

	t.Run("provider carries transaction auxiliary", func(t *testing.T) {
		p, ok, err := store.ProviderFor(ctx, segment.KindReceipts, 0)
		require.NoError(t, err)
		require.True(t, ok)

		r, err := p.ReceiptByHash(txs[1].Hash())
		require.NoError(t, err)
		require.NotNil(t, r)
		require.Equal(t, uint64(42_000), r.CumulativeGasUsed)
	})
}

func TestStoreRejectsMisnamedSegment(t *testing.T) {
	dir := t.TempDir()
	b := segtest.NewBuilder(segment.KindHeaders, 0)
	h := segtest.MakeHeader(0)
	b.AppendRow(segtest.EncodeHeader(h), segtest.TDBytes(h.Difficulty), h.Hash().Bytes())
	// The name claims ten rows; the file holds one.
	require.NoError(t, b.WriteFile(filepath.Join(dir, manifest.EntryName(segment.KindHeaders, 0, 9))))

	store := openStore(t, dir)
	_, err := store.HeaderByNumber(context.Background(), 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "name claims")
}

func TestStoreRemoteWithCache(t *testing.T) {
	dir := t.TempDir()
	hashes := writeHeaderSegment(t, dir, 0, 2)

	remote := blobstore.NewMemoryStore()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		remote.Put(e.Name(), data)
	}

	cacheDir := t.TempDir()
	ctx := context.Background()
	store, err := coldstore.Open(ctx,
		coldstore.Remote(remote),
		coldstore.WithCacheDir(cacheDir),
		coldstore.WithDownloadRateLimit(1<<30),
	)
	require.NoError(t, err)
	defer store.Close()

	hdr, err := store.HeaderByNumber(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, hdr)
	require.Equal(t, hashes[1], hdr.Hash())

	// The segment is now cached locally.
	cached, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, cached, 1)
}

func TestStoreOpenValidation(t *testing.T) {
	ctx := context.Background()

	_, err := coldstore.Open(ctx)
	require.Error(t, err)

	_, err = coldstore.Open(ctx,
		coldstore.Local(t.TempDir()),
		coldstore.Remote(blobstore.NewMemoryStore()),
	)
	require.Error(t, err)
}

func TestStoreClose(t *testing.T) {
	dir := t.TempDir()
	writeHeaderSegment(t, dir, 0, 2)

	store, err := coldstore.Open(context.Background(), coldstore.Local(dir))
	require.NoError(t, err)

	_, err = store.HeaderByNumber(context.Background(), 0)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.HeaderByNumber(context.Background(), 0)
	require.ErrorIs(t, err, coldstore.ErrClosed)
}
