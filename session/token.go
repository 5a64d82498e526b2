package session

import (
	"encoding/binary"
	"time"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

// TokenSource mints the 64-bit tokens carried in Command/Response records:
// the high 32 bits are the wall-clock second the token was minted, the next
// 16 bits are a per-session serial that increases monotonically, and the
// low 16 bits are random filler. A device response must echo the token its
// request carried; the package-level Verify checks that.
type TokenSource struct {
	serial uint16
}

// NewTokenSource seeds the serial from a random 16-bit value so tokens from
// distinct sessions don't collide on restart.
func NewTokenSource() (*TokenSource, error) {
	b, err := randomBytes(2)
	if err != nil {
		return nil, err
	}
	return &TokenSource{serial: binary.LittleEndian.Uint16(b)}, nil
}

// Next mints the next token and advances the serial.
func (t *TokenSource) Next() (uint64, error) {
	filler, err := randomBytes(2)
	if err != nil {
		return 0, err
	}
	secs := uint64(time.Now().Unix())
	token := (secs << 32) | (uint64(t.serial) << 16) | uint64(binary.LittleEndian.Uint16(filler))
	t.serial++
	return token, nil
}

// Verify reports whether a response's echoed token matches the one a
// request carried.
func Verify(sent, received uint64) error {
	if sent != received {
		return errs.New(errs.KindAuth, "response token mismatch")
	}
	return nil
}
