package segment

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressCellRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("abcdefgh"), 512),
	}

	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, payload := range payloads {
			stored, err := CompressCell(comp, payload)
			require.NoError(t, err)

			got, err := DecompressCell(comp, stored)
			require.NoError(t, err)
			require.Equal(t, len(payload), len(got))
			require.Equal(t, []byte(payload), []byte(got))
		}
	}
}

func TestCompressCellIncompressibleFallsBackToRaw(t *testing.T) {
	// High-entropy payload: both algorithms should store it raw.
	payload := make([]byte, 256)
	state := uint32(0x9e3779b9)
	for i := range payload {
		state = state*1664525 + 1013904223
		payload[i] = byte(state >> 24)
	}

	for _, comp := range []Compression{CompressionLZ4, CompressionZSTD} {
		stored, err := CompressCell(comp, payload)
		require.NoError(t, err)
		require.Equal(t, cellHeaderSize+len(payload), len(stored))

		got, err := DecompressCell(comp, stored)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestDecompressCellCorrupted(t *testing.T) {
	_, err := DecompressCell(CompressionLZ4, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorrupted)

	stored, err := CompressCell(CompressionZSTD, bytes.Repeat([]byte("a"), 1024))
	require.NoError(t, err)
	_, err = DecompressCell(CompressionZSTD, stored[:len(stored)-1])
	require.ErrorIs(t, err, ErrCorrupted)
}
