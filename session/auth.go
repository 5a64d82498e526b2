package session

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/protocol"
)

// Authenticator computes and verifies the HMAC tags carried in Command and
// Response records, using whichever digest the session negotiated.
type Authenticator struct {
	macType protocol.MacType
	key     []byte
}

// NewAuthenticator builds an Authenticator for the given MAC type and key.
// A MacNone type makes every Compute/Verify call a no-op, matching sessions
// with MAC disabled.
func NewAuthenticator(macType protocol.MacType, key []byte) *Authenticator {
	return &Authenticator{macType: macType, key: key}
}

func (a *Authenticator) newHash() (func() hash.Hash, error) {
	switch a.macType {
	case protocol.MacHmacMD5:
		return md5.New, nil
	case protocol.MacHmacSha160:
		return sha1.New, nil
	case protocol.MacHmacSha256:
		return sha256.New, nil
	default:
		return nil, errs.New(errs.KindAuth, "unsupported mac type")
	}
}

// Compute returns the HMAC tag over span, sized to the negotiated digest.
func (a *Authenticator) Compute(span []byte) ([]byte, error) {
	if a.macType == protocol.MacNone {
		return nil, nil
	}
	newHash, err := a.newHash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, a.key)
	mac.Write(span)
	return mac.Sum(nil), nil
}

// Verify recomputes the HMAC over span and compares it against tag in
// constant time.
func (a *Authenticator) Verify(span, tag []byte) error {
	if a.macType == protocol.MacNone {
		return nil
	}
	expected, err := a.Compute(span)
	if err != nil {
		return err
	}
	if len(tag) < len(expected) {
		return errs.New(errs.KindAuth, "mac too short to verify")
	}
	if !hmac.Equal(expected, tag[:len(expected)]) {
		return errs.New(errs.KindAuth, "mac verification failed")
	}
	return nil
}
