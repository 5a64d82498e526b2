package rangeseq

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type prngSource struct {
	r *rand.Rand
}

func (p *prngSource) GetEntropy(dest []byte) error {
	for i := 0; i+4 <= len(dest); i += 4 {
		binary.LittleEndian.PutUint32(dest[i:], p.r.Uint32())
	}
	return nil
}

func TestGenerateProducesDistinctValuesInRange(t *testing.T) {
	src := &prngSource{r: rand.New(rand.NewSource(1))}
	seq, err := New(src, 10, 20)
	require.NoError(t, err)

	out, err := seq.Generate(11)
	require.NoError(t, err)
	require.Len(t, out, 11)

	seen := make(map[int64]bool)
	for _, v := range out {
		require.GreaterOrEqual(t, v, int64(10))
		require.LessOrEqual(t, v, int64(20))
		require.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
	}
}

func TestGenerateRejectsSizeLargerThanRange(t *testing.T) {
	src := &prngSource{r: rand.New(rand.NewSource(1))}
	seq, err := New(src, 0, 4)
	require.NoError(t, err)

	_, err = seq.Generate(10)
	require.Error(t, err)
}

func TestNewRejectsOutOfBoundsRange(t *testing.T) {
	src := &prngSource{r: rand.New(rand.NewSource(1))}

	_, err := New(src, minAllowed-1, 0)
	require.Error(t, err)

	_, err = New(src, 0, maxAllowed+1)
	require.Error(t, err)

	_, err = New(src, 10, 5)
	require.Error(t, err)
}

func TestGenerateRepeatableAcrossCalls(t *testing.T) {
	src := &prngSource{r: rand.New(rand.NewSource(7))}
	seq, err := New(src, 0, 99)
	require.NoError(t, err)

	first, err := seq.Generate(100)
	require.NoError(t, err)
	second, err := seq.Generate(100)
	require.NoError(t, err)

	require.Len(t, first, 100)
	require.Len(t, second, 100)
}
