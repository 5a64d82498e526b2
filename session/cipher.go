package session

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"time"

	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/protocol"
)

// Cipher seals and opens AES-GCM packets using the session's AES key and a
// monotonically increasing IV serial. Each packet's IV is
// u32_le(wall-clock seconds) ‖ u32_le(serial) ‖ 4 random bytes; the serial
// is seeded randomly at session start and incremented on every seal so two
// packets encoded within the same second never reuse a nonce.
type Cipher struct {
	aead   cipher.AEAD
	serial uint32
	aad    []byte
}

// NewCipher builds a Cipher from a raw AES key (16 or 32 bytes) and the
// session's additional authenticated data, seeding the IV serial counter
// from crypto/rand. aad is the same cipherAad shipped to the device inside
// the Session record, so both ends bind the GCM tag to it.
func NewCipher(key []byte, aad []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindSession, err, "construct aes cipher")
	}
	aead, err := cipher.NewGCMWithNonceSize(block, protocol.PacketIVSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindSession, err, "construct gcm aead")
	}
	seed, err := randomBytes(4)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, serial: binary.LittleEndian.Uint32(seed), aad: aad}, nil
}

func (c *Cipher) nextIV() ([protocol.PacketIVSize]byte, error) {
	var iv [protocol.PacketIVSize]byte
	binary.LittleEndian.PutUint32(iv[0:4], uint32(time.Now().Unix()))
	binary.LittleEndian.PutUint32(iv[4:8], c.serial)
	c.serial++

	tail, err := randomBytes(4)
	if err != nil {
		return iv, err
	}
	copy(iv[8:12], tail)
	return iv, nil
}

// Seal encrypts plaintext and returns a Packet of the given type ready for
// transmission, with a freshly minted IV and the GCM tag split out.
func (c *Cipher) Seal(packetType protocol.PacketType, keySize protocol.KeySize, plaintext []byte) (*protocol.Packet, error) {
	iv, err := c.nextIV()
	if err != nil {
		return nil, err
	}

	sealed := c.aead.Seal(nil, iv[:], plaintext, c.aad)
	ciphertext := sealed[:len(sealed)-c.aead.Overhead()]
	tag := sealed[len(sealed)-c.aead.Overhead():]

	p := &protocol.Packet{
		Type:        packetType,
		KeySize:     keySize,
		IV:          iv,
		PayloadSize: uint16(len(ciphertext)),
		Payload:     ciphertext,
	}
	copy(p.Tag[:], tag)
	return p, nil
}

// Open decrypts a received Packet's payload using its carried IV and tag.
func (c *Cipher) Open(p *protocol.Packet) ([]byte, error) {
	sealed := append(append([]byte{}, p.Payload...), p.Tag[:]...)
	plaintext, err := c.aead.Open(nil, p.IV[:], sealed, c.aad)
	if err != nil {
		return nil, errs.Wrap(errs.KindSession, err, "gcm open failed, authentication mismatch")
	}
	return plaintext, nil
}
