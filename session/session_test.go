package session

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tectrolabs-go/alpharng/protocol"
	"github.com/tectrolabs-go/alpharng/transport/mock"
)

func TestCipherSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	aad := make([]byte, protocol.SessionAadSize)
	_, err = rand.Read(aad)
	require.NoError(t, err)

	c, err := NewCipher(key, aad)
	require.NoError(t, err)

	pkt, err := c.Seal(protocol.PacketAES, protocol.Key256, []byte("hello session"))
	require.NoError(t, err)

	plain, err := c.Open(pkt)
	require.NoError(t, err)
	require.Equal(t, []byte("hello session"), plain)
}

func TestCipherIVSerialIncrements(t *testing.T) {
	key := make([]byte, 16)
	c, err := NewCipher(key, make([]byte, protocol.SessionAadSize))
	require.NoError(t, err)

	first := c.serial
	_, err = c.Seal(protocol.PacketAES, protocol.Key128, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, first+1, c.serial)
}

func TestCipherOpenRejectsMismatchedAad(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	sealer, err := NewCipher(key, []byte("session-aad-aaaa"))
	require.NoError(t, err)
	pkt, err := sealer.Seal(protocol.PacketAES, protocol.Key256, []byte("payload"))
	require.NoError(t, err)

	opener, err := NewCipher(key, []byte("session-aad-bbbb"))
	require.NoError(t, err)
	_, err = opener.Open(pkt)
	require.Error(t, err)
}

func TestAuthenticatorVerifyTruncatesToDigestLength(t *testing.T) {
	span := []byte("integrity span")

	md5Auth := NewAuthenticator(protocol.MacHmacMD5, []byte("mac-key-0123456789abcdef01234567"))
	tag, err := md5Auth.Compute(span)
	require.NoError(t, err)
	require.Len(t, tag, 16)

	full := make([]byte, protocol.ResponseMacSize)
	copy(full, tag)
	require.NoError(t, md5Auth.Verify(span, full))

	sha1Auth := NewAuthenticator(protocol.MacHmacSha160, []byte("mac-key-0123456789abcdef01234567"))
	tag, err = sha1Auth.Compute(span)
	require.NoError(t, err)
	require.Len(t, tag, 20)

	full = make([]byte, protocol.ResponseMacSize)
	copy(full, tag)
	require.NoError(t, sha1Auth.Verify(span, full))
}

func TestAuthenticatorComputeVerify(t *testing.T) {
	auth := NewAuthenticator(protocol.MacHmacSha256, []byte("mac-key-0123456789abcdef01234567"))
	span := []byte("integrity span")

	tag, err := auth.Compute(span)
	require.NoError(t, err)
	require.NoError(t, auth.Verify(span, tag))
	require.Error(t, auth.Verify(span, []byte("wrong")))
}

func TestAuthenticatorNoneIsNoop(t *testing.T) {
	auth := NewAuthenticator(protocol.MacNone, nil)
	tag, err := auth.Compute([]byte("anything"))
	require.NoError(t, err)
	require.Nil(t, tag)
	require.NoError(t, auth.Verify([]byte("anything"), nil))
}

func TestTokenSourceNextIncreasesSerial(t *testing.T) {
	ts, err := NewTokenSource()
	require.NoError(t, err)

	a, err := ts.Next()
	require.NoError(t, err)
	b, err := ts.Next()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Equal(t, uint16(a>>16)+1, uint16(b>>16))
}

func TestVerifyTokenMismatch(t *testing.T) {
	require.NoError(t, Verify(7, 7))
	require.Error(t, Verify(7, 8))
}

func TestRsaEncryptNoPaddingRejectsOversizedMessage(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	_, err = rsaEncryptNoPadding(&priv.PublicKey, make([]byte, 256))
	require.Error(t, err)
}

func TestHandshakeRoundTripWithMockLink(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	link := mock.New("/dev/fake0")
	cfg := Config{KeySize: protocol.Key256, MacType: protocol.MacHmacSha256, RsaKeySize: protocol.Rsa1024}

	done := make(chan error, 1)
	go func() {
		_, hsErr := Handshake(link, cfg, &priv.PublicKey, 4*time.Second)
		done <- hsErr
	}()

	// Give the handshake goroutine a moment to write the request packet.
	time.Sleep(20 * time.Millisecond)
	txLog := link.TxLog()
	require.Len(t, txLog, 1)

	pkt, err := protocol.DecodePacket(txLog[0])
	require.NoError(t, err)
	require.Equal(t, protocol.PacketRSA1024, pkt.Type)

	decryptedRecordBytes, err := rsaDecryptForTest(priv, pkt.Payload)
	require.NoError(t, err)
	rec, err := protocol.DecodeSession(decryptedRecordBytes)
	require.NoError(t, err)

	auth := NewAuthenticator(cfg.MacType, rec.MacKey[:int(cfg.MacType)])
	cipher, err := NewCipher(rec.Key[:int(cfg.KeySize)], rec.Aad[:])
	require.NoError(t, err)

	resp := &protocol.Response{Token: rec.Token, PayloadSize: 1, Payload: []byte{0}}
	mac, err := auth.Compute(resp.MacSpan())
	require.NoError(t, err)
	copy(resp.Mac[:], mac)

	respPkt, err := cipher.Seal(protocol.PacketAES, cfg.KeySize, resp.Encode())
	require.NoError(t, err)
	link.InjectRx(respPkt.Encode())

	require.NoError(t, <-done)
}

// rsaDecryptForTest undoes rsaEncryptNoPadding using the private key, for
// asserting what the handshake actually sent. The decrypted block is
// modulus-width with the record in its leading bytes and random padding in
// the tail, so it must be reconstituted at full width before slicing.
func rsaDecryptForTest(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	keySize := (priv.N.BitLen() + 7) / 8
	c := new(big.Int).SetBytes(ciphertext)
	m := new(big.Int).Exp(c, priv.D, priv.N)
	block := make([]byte, keySize)
	m.FillBytes(block)
	return block[:protocol.SessionRecordSize], nil
}
