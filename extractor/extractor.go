// Package extractor conditions raw device noise into output bytes by
// repeatedly compressing fixed-size input windows with a cryptographic
// hash, following the SHA-based entropy extractor described for the
// device's noise sources.
package extractor

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

// HashChoice selects the conditioning hash.
type HashChoice int

const (
	SHA256 HashChoice = iota
	SHA512
)

func (h HashChoice) size() int {
	if h == SHA512 {
		return sha512.Size
	}
	return sha256.Size
}

func (h HashChoice) new() hash.Hash {
	if h == SHA512 {
		return sha512.New()
	}
	return sha256.New()
}

// NoiseSource supplies raw, unconditioned noise bytes on demand — the
// engine's bulk-read path satisfies this for the device's two noise
// sources concatenated together.
type NoiseSource interface {
	GetNoise(dest []byte) error
}

// defaultInOutRatio is the number of raw input bytes consumed per
// conditioned output byte when the caller doesn't override it.
const defaultInOutRatio = 2

// Extractor compresses in_out_ratio*hash_size raw bytes into hash_size
// conditioned bytes at a time, buffering device reads in batches sized to
// amortize the per-call overhead of pulling noise from the device.
type Extractor struct {
	source    NoiseSource
	hash      HashChoice
	inOutRatio int
}

// New builds an Extractor reading from source and conditioning with the
// given hash and input/output ratio (must be >= 1; 0 defaults to 2).
func New(source NoiseSource, h HashChoice, inOutRatio int) (*Extractor, error) {
	if inOutRatio <= 0 {
		inOutRatio = defaultInOutRatio
	}
	return &Extractor{source: source, hash: h, inOutRatio: inOutRatio}, nil
}

// Extract fills dest with conditioned bytes, pulling as much raw noise from
// the source as needed.
func (e *Extractor) Extract(dest []byte) error {
	hashSize := e.hash.size()
	inPerSha := hashSize * e.inOutRatio
	bufferSize := inPerSha * 1000

	raw := make([]byte, bufferSize)
	written := 0

	for written < len(dest) {
		remaining := len(dest) - written
		shaQty := (remaining + hashSize - 1) / hashSize
		totalIn := inPerSha * shaQty
		if totalIn > bufferSize {
			totalIn = bufferSize
		}
		shaQty = totalIn / inPerSha
		if shaQty == 0 {
			shaQty = 1
			totalIn = inPerSha
		}

		if err := e.source.GetNoise(raw[:totalIn]); err != nil {
			return errs.Wrap(errs.KindProtocol, err, "read raw noise for extraction")
		}

		for i := 0; i < shaQty && written < len(dest); i++ {
			window := raw[i*inPerSha : (i+1)*inPerSha]
			h := e.hash.new()
			h.Write(window)
			block := h.Sum(nil)

			n := copy(dest[written:], block)
			written += n
		}
	}
	return nil
}
