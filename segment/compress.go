package segment

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-cell compression algorithm of a segment.
type Compression uint8

const (
	// CompressionNone stores cells raw; reads are zero-copy views into the
	// mapped file.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd block compression (better ratio, cold data).
	CompressionZSTD Compression = 2
)

// Valid reports whether c is a known compression mode.
func (c Compression) Valid() bool {
	return c <= CompressionZSTD
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Compressed cells carry an 8-byte block header:
// [uncompressedSize uint32][compressedSize uint32][payload].
// compressedSize == 0 means the payload is stored raw.
const cellHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// CompressCell encodes one cell value for storage under compression mode c.
// With CompressionNone the value is returned as-is. Otherwise the cell is
// stored with a block header, falling back to raw storage when compression
// does not pay for itself.
func CompressCell(c Compression, data []byte) ([]byte, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, nil
	}

	var compressed []byte
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		compressed = dst[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("segment: unknown compression %d", c)
	}

	if len(compressed) == 0 || len(compressed) >= len(data) {
		out := make([]byte, cellHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[cellHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, cellHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[cellHeaderSize:], compressed)
	return out, nil
}

// DecompressCell decodes one stored cell. With CompressionNone the stored
// bytes are returned without copying.
func DecompressCell(c Compression, cell []byte) ([]byte, error) {
	if c == CompressionNone || len(cell) == 0 {
		return cell, nil
	}
	if len(cell) < cellHeaderSize {
		return nil, fmt.Errorf("%w: cell smaller than block header", ErrCorrupted)
	}

	uncompressedSize := binary.LittleEndian.Uint32(cell[0:])
	compressedSize := binary.LittleEndian.Uint32(cell[4:])

	if compressedSize == 0 {
		if uint32(len(cell)-cellHeaderSize) != uncompressedSize {
			return nil, fmt.Errorf("%w: raw cell size mismatch", ErrCorrupted)
		}
		return cell[cellHeaderSize:], nil
	}
	if uint32(len(cell)-cellHeaderSize) != compressedSize {
		return nil, fmt.Errorf("%w: compressed cell size mismatch", ErrCorrupted)
	}
	payload := cell[cellHeaderSize:]

	switch c {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupted)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupted)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("segment: unknown compression %d", c)
	}
}
