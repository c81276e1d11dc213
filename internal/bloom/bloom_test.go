package bloom

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomHashes(t *testing.T, n int) [][]byte {
	t.Helper()
	out := make([][]byte, n)
	for i := range out {
		h := make([]byte, 32)
		_, err := rand.Read(h)
		require.NoError(t, err)
		out[i] = h
	}
	return out
}

func TestFilterAddContains(t *testing.T) {
	hashes := randomHashes(t, 1000)

	f := New(len(hashes))
	for _, h := range hashes {
		f.Add(h)
	}
	require.Equal(t, uint32(len(hashes)), f.Count())

	for _, h := range hashes {
		require.True(t, f.MayContain(h))
	}
}

func TestFilterFalsePositiveRate(t *testing.T) {
	present := randomHashes(t, 1000)
	absent := randomHashes(t, 10000)

	f := New(len(present))
	for _, h := range present {
		f.Add(h)
	}

	falsePositives := 0
	for _, h := range absent {
		if f.MayContain(h) {
			falsePositives++
		}
	}
	// Sized for ~1%; allow generous slack to keep the test stable.
	require.Less(t, falsePositives, len(absent)/20)
}

func TestFilterRoundTrip(t *testing.T) {
	hashes := randomHashes(t, 100)

	f := New(len(hashes))
	for _, h := range hashes {
		f.Add(h)
	}

	data, err := f.MarshalBinary()
	require.NoError(t, err)

	g, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, f.Count(), g.Count())

	for _, h := range hashes {
		require.True(t, g.MayContain(h))
	}
}

func TestUnmarshalCorrupted(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorrupted)

	f := New(10)
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	_, err = Unmarshal(data[:len(data)-1])
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestShortKeyFallback(t *testing.T) {
	f := New(10)
	f.Add([]byte("ab"))
	require.True(t, f.MayContain([]byte("ab")))
	require.False(t, f.MayContain([]byte("cd")))
}
