package session

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

// rsaEncryptNoPadding performs raw RSA encryption: c = m^e mod n, with no
// padding scheme applied. This matches the device's RsaCryptor, which
// configures OpenSSL with RSA_NO_PADDING rather than OAEP or PKCS#1v1.5;
// Go's crypto/rsa does not expose an unpadded encrypt operation.
//
// The device reads the record from the leading bytes of the decrypted,
// modulus-width block, per create_and_upload_session_packet: message goes
// into the front of a keySize buffer and the remainder is filled with
// random bytes before the whole block is exponentiated, so the message must
// fit within keySize-1 bytes to stay numerically smaller than the modulus.
func rsaEncryptNoPadding(pub *rsa.PublicKey, message []byte) ([]byte, error) {
	keySize := (pub.N.BitLen() + 7) / 8
	if len(message) >= keySize {
		return nil, errs.New(errs.KindSession, "message longer than rsa modulus")
	}

	block := make([]byte, keySize)
	copy(block, message)
	tail, err := randomBytes(keySize - len(message))
	if err != nil {
		return nil, err
	}
	copy(block[len(message):], tail)

	m := new(big.Int).SetBytes(block)
	if m.Cmp(pub.N) >= 0 {
		// The leading, message-carrying bytes alone already exceed the
		// modulus; no choice of random tail fixes that. OpenSSL's
		// RSA_NO_PADDING encrypt rejects the same way ("data too large
		// for modulus").
		return nil, errs.New(errs.KindSession, "message not smaller than rsa modulus")
	}

	e := big.NewInt(int64(pub.E))
	c := new(big.Int).Exp(m, e, pub.N)

	out := make([]byte, keySize)
	c.FillBytes(out)
	return out, nil
}

// randomBytes fills a fresh byte slice of length n via crypto/rand.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errs.Wrap(errs.KindSession, err, "read random bytes")
	}
	return b, nil
}
