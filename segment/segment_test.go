package segment_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/coldstore/segment"
	"github.com/chainkit/coldstore/segtest"
)

var (
	hashA = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	hashC = common.HexToHash("0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")
)

func headerFixture(t *testing.T, first uint64) *segment.Segment {
	t.Helper()
	seg, err := segtest.NewBuilder(segment.KindHeaders, first).
		AppendIndexedRow(hashA, []byte("header-0"), []byte{0x10}, hashA.Bytes()).
		AppendIndexedRow(hashB, []byte("header-1"), []byte{0x20}, hashB.Bytes()).
		SkipRow().
		AppendIndexedRow(hashC, []byte("header-3"), []byte{0x30}, hashC.Bytes()).
		Open()
	require.NoError(t, err)
	return seg
}

func TestSegmentMetadata(t *testing.T) {
	seg := headerFixture(t, 100)

	require.Equal(t, segment.KindHeaders, seg.Kind())
	require.Equal(t, uint64(100), seg.FirstRowKey())
	require.Equal(t, uint64(4), seg.RowCount())
	require.Equal(t, uint64(103), seg.LastRowKey())
	require.True(t, seg.HasHashIndex())
}

func TestGetOneByNumber(t *testing.T) {
	seg := headerFixture(t, 100)
	c := seg.Cursor()

	v, err := c.GetOne(segment.MaskOf(segment.ColHeader), segment.NumberKey(101))
	require.NoError(t, err)
	require.Equal(t, []byte("header-1"), v)
	require.Equal(t, uint64(101), c.Number())

	// Absent row inside the covered range.
	v, err = c.GetOne(segment.MaskOf(segment.ColHeader), segment.NumberKey(102))
	require.NoError(t, err)
	require.Nil(t, v)

	// Out of range on both sides.
	for _, n := range []uint64{0, 99, 104, 1 << 40} {
		v, err = c.GetOne(segment.MaskOf(segment.ColHeader), segment.NumberKey(n))
		require.NoError(t, err)
		require.Nil(t, v)
	}
}

func TestGetOneByHash(t *testing.T) {
	seg := headerFixture(t, 100)
	c := seg.Cursor()

	v, err := c.GetOne(segment.MaskOf(segment.ColHeader), segment.HashKey(hashC))
	require.NoError(t, err)
	require.Equal(t, []byte("header-3"), v)
	require.Equal(t, uint64(103), c.Number())

	unknown := common.HexToHash("0xdddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd")
	v, err = c.GetOne(segment.MaskOf(segment.ColHeader), segment.HashKey(unknown))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestGetTwoMaskOrder(t *testing.T) {
	seg := headerFixture(t, 100)
	c := seg.Cursor()

	hdr, hash, err := c.GetTwo(segment.MaskOf(segment.ColHeader, segment.ColBlockHash), segment.NumberKey(100))
	require.NoError(t, err)
	require.Equal(t, []byte("header-0"), hdr)
	require.Equal(t, hashA.Bytes(), hash)

	// Reversed mask decodes in declaration order.
	hash, hdr, err = c.GetTwo(segment.MaskOf(segment.ColBlockHash, segment.ColHeader), segment.NumberKey(100))
	require.NoError(t, err)
	require.Equal(t, hashA.Bytes(), hash)
	require.Equal(t, []byte("header-0"), hdr)
}

func TestMaskArity(t *testing.T) {
	seg := headerFixture(t, 0)
	c := seg.Cursor()

	_, err := c.GetOne(segment.MaskOf(segment.ColHeader, segment.ColBlockHash), segment.NumberKey(0))
	require.Error(t, err)
	_, _, err = c.GetTwo(segment.MaskOf(segment.ColHeader), segment.NumberKey(0))
	require.Error(t, err)

	require.Panics(t, func() { segment.MaskOf() })
	require.Panics(t, func() {
		segment.MaskOf(segment.ColHeader, segment.ColTotalDifficulty, segment.ColBlockHash)
	})
}

func TestHashKeyWithoutIndex(t *testing.T) {
	seg, err := segtest.NewBuilder(segment.KindReceipts, 0).
		AppendRow([]byte("receipt-0")).
		Open()
	require.NoError(t, err)
	require.False(t, seg.HasHashIndex())

	_, err = seg.Cursor().GetOne(segment.MaskOf(segment.ColReceipt), segment.HashKey(hashA))
	require.ErrorIs(t, err, segment.ErrNoHashIndex)
}

func TestColumnOutOfRange(t *testing.T) {
	seg, err := segtest.NewBuilder(segment.KindTransactions, 0).
		AppendRow([]byte("tx-0")).
		Open()
	require.NoError(t, err)

	_, err = seg.Cursor().GetOne(segment.MaskOf(segment.ColBlockHash), segment.NumberKey(0))
	require.Error(t, err)
}

func TestCompressionModes(t *testing.T) {
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i / 128) // compressible
	}

	for _, comp := range []segment.Compression{
		segment.CompressionNone,
		segment.CompressionLZ4,
		segment.CompressionZSTD,
	} {
		t.Run(comp.String(), func(t *testing.T) {
			seg, err := segtest.NewBuilder(segment.KindReceipts, 7).
				WithCompression(comp).
				AppendRow(big).
				AppendRow([]byte("tiny")). // falls back to raw storage
				Open()
			require.NoError(t, err)

			c := seg.Cursor()
			v, err := c.GetOne(segment.MaskOf(segment.ColReceipt), segment.NumberKey(7))
			require.NoError(t, err)
			require.Equal(t, big, v)

			v, err = c.GetOne(segment.MaskOf(segment.ColReceipt), segment.NumberKey(8))
			require.NoError(t, err)
			require.Equal(t, []byte("tiny"), v)
		})
	}
}

func TestRepeatedReadsAreStable(t *testing.T) {
	seg := headerFixture(t, 0)
	c := seg.Cursor()

	first, err := c.GetOne(segment.MaskOf(segment.ColHeader), segment.NumberKey(1))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.GetOne(segment.MaskOf(segment.ColHeader), segment.NumberKey(1))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestOpenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers_100_103.seg")
	require.NoError(t, segtest.NewBuilder(segment.KindHeaders, 100).
		AppendIndexedRow(hashA, []byte("h"), []byte{1}, hashA.Bytes()).
		AppendRow([]byte("h2"), []byte{2}, hashB.Bytes()).
		SkipRow().
		AppendRow([]byte("h3"), []byte{3}, hashC.Bytes()).
		WriteFile(path))

	seg, err := segment.Open(path)
	require.NoError(t, err)
	defer seg.Close()

	v, err := seg.Cursor().GetOne(segment.MaskOf(segment.ColHeader), segment.HashKey(hashA))
	require.NoError(t, err)
	require.Equal(t, []byte("h"), v)

	require.NoError(t, seg.Close())
}

func TestCorruptedFiles(t *testing.T) {
	data, err := segtest.NewBuilder(segment.KindHeaders, 0).
		AppendRow([]byte("h"), []byte{1}, hashA.Bytes()).
		Build()
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] ^= 0xff
		_, err := segment.New(bad)
		require.ErrorIs(t, err, segment.ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[4] = 99
		_, err := segment.New(bad)
		require.ErrorIs(t, err, segment.ErrInvalidVersion)
	})

	t.Run("bad kind", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[8] = 200
		_, err := segment.New(bad)
		require.ErrorIs(t, err, segment.ErrInvalidKind)
	})

	t.Run("flipped body bit", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[segment.HeaderSize] ^= 0x01
		_, err := segment.New(bad)
		var mismatch *segment.ChecksumMismatchError
		require.ErrorAs(t, err, &mismatch)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := segment.New(data[:segment.HeaderSize-1])
		require.ErrorIs(t, err, segment.ErrCorrupted)
	})
}
