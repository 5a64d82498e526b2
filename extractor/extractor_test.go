package extractor

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedNoise struct {
	pattern byte
	calls   int
}

func (f *fixedNoise) GetNoise(dest []byte) error {
	f.calls++
	for i := range dest {
		dest[i] = f.pattern
	}
	return nil
}

func TestExtractProducesRequestedLength(t *testing.T) {
	src := &fixedNoise{pattern: 0x42}
	ext, err := New(src, SHA256, 2)
	require.NoError(t, err)

	out := make([]byte, 100)
	require.NoError(t, ext.Extract(out))
	require.Len(t, out, 100)
}

func TestExtractMatchesHashOfWindow(t *testing.T) {
	src := &fixedNoise{pattern: 0x11}
	ext, err := New(src, SHA256, 1)
	require.NoError(t, err)

	out := make([]byte, sha256.Size)
	require.NoError(t, ext.Extract(out))

	window := make([]byte, sha256.Size)
	for i := range window {
		window[i] = 0x11
	}
	expected := sha256.Sum256(window)
	require.Equal(t, expected[:], out)
}

func TestExtractDefaultsInvalidRatio(t *testing.T) {
	src := &fixedNoise{pattern: 0x01}
	ext, err := New(src, SHA512, 0)
	require.NoError(t, err)
	require.Equal(t, defaultInOutRatio, ext.inOutRatio)

	out := make([]byte, 64)
	require.NoError(t, ext.Extract(out))
}

func TestExtractLargerThanBufferLoopsMultipleBatches(t *testing.T) {
	src := &fixedNoise{pattern: 0x7E}
	ext, err := New(src, SHA256, 2)
	require.NoError(t, err)

	out := make([]byte, 2_000_000)
	require.NoError(t, ext.Extract(out))
	require.Greater(t, src.calls, 1)
}
