// Package rangeseq produces duplicate-free random sequences over an
// integer range, backed by an injectable source of 32-bit entropy words
// rather than a fixed hardware source.
package rangeseq

import (
	"encoding/binary"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

const (
	minAllowed = -2147483647
	maxAllowed = 2147483647
	maxRangeSize = 4294967295
)

// EntropySource supplies raw 32-bit little-endian entropy words; the
// facade satisfies this with the engine's bulk entropy read.
type EntropySource interface {
	GetEntropy(dest []byte) error
}

// Sequence generates permutations of [min..max] without duplicates using
// a double-buffer compaction algorithm: slots are marked consumed by
// setting them to -1 and periodically compacted so later draws only ever
// index into the remaining live slots.
type Sequence struct {
	source EntropySource
	min    int64
	max    int64

	rangeSize uint64
	bufA      []int64
	bufB      []int64
}

// New validates the requested range and builds a Sequence generator.
// rangeSize is max-min+1 and bounds the capacity of the internal buffers.
func New(source EntropySource, min, max int64) (*Sequence, error) {
	if min < minAllowed {
		return nil, errs.New(errs.KindConfig, "range minimum below allowed floor")
	}
	if max > maxAllowed {
		return nil, errs.New(errs.KindConfig, "range maximum above allowed ceiling")
	}
	if min > max {
		return nil, errs.New(errs.KindConfig, "range minimum greater than maximum")
	}
	rangeSize := uint64(max-min) + 1
	if rangeSize > maxRangeSize {
		return nil, errs.New(errs.KindConfig, "range size exceeds maximum")
	}

	return &Sequence{
		source:    source,
		min:       min,
		max:       max,
		rangeSize: rangeSize,
		bufA:      make([]int64, rangeSize),
		bufB:      make([]int64, rangeSize),
	}, nil
}

// Generate produces size distinct values drawn from [min..max] in random
// order. size must not exceed the configured range size.
func (s *Sequence) Generate(size int) ([]int64, error) {
	if uint64(size) > s.rangeSize {
		return nil, errs.New(errs.KindConfig, "requested size exceeds range size")
	}

	for i := range s.bufA {
		s.bufA[i] = int64(i) + 1
	}
	active := s.bufA
	other := s.bufB[:0]
	out := make([]int64, 0, size)

	for len(active) > 0 && len(out) < size {
		words, err := s.drawWords(len(out), size)
		if err != nil {
			return nil, err
		}

		for _, e := range words {
			if len(out) >= size {
				break
			}
			idx := int(e % uint32(len(active)))
			if active[idx] != -1 {
				out = append(out, active[idx])
				active[idx] = -1
			}
		}

		other = other[:0]
		for _, v := range active {
			if v != -1 {
				other = append(other, v)
			}
		}
		active, other = other, active
	}

	for i := range out {
		out[i] += s.min - 1
	}
	return out, nil
}

// drawWords requests enough 32-bit words to cover the remaining draws
// needed to reach size outputs.
func (s *Sequence) drawWords(produced, size int) ([]uint32, error) {
	need := size - produced
	raw := make([]byte, need*4)
	if err := s.source.GetEntropy(raw); err != nil {
		return nil, errs.Wrap(errs.KindProtocol, err, "read entropy for range sequence")
	}

	words := make([]uint32, need)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}
