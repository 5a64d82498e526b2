package engine

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tectrolabs-go/alpharng/protocol"
	"github.com/tectrolabs-go/alpharng/session"
	"github.com/tectrolabs-go/alpharng/transport/mock"
)

// deviceFixture plays the device side of the protocol against an Engine
// under test, using a mock.Link as the shared transport.
type deviceFixture struct {
	link *mock.Link
	priv *rsa.PrivateKey
	cfg  session.Config
}

func newDeviceFixture(t *testing.T, cfg session.Config) *deviceFixture {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return &deviceFixture{link: mock.New("/dev/fake0"), priv: priv, cfg: cfg}
}

type deviceSession struct {
	rec    *protocol.Session
	auth   *session.Authenticator
	cipher *session.Cipher
	cfg    session.Config
}

func (d *deviceSession) sealResponse(t *testing.T, resp *protocol.Response) []byte {
	if d.cipher != nil {
		pkt, err := d.cipher.Seal(protocol.PacketAES, d.cfg.KeySize, protocol.PadResponse(resp, d.cfg.KeySize))
		require.NoError(t, err)
		return pkt.Encode()
	}
	plain := protocol.PadResponse(resp, d.cfg.KeySize)
	pkt := &protocol.Packet{Type: protocol.PacketAES, KeySize: protocol.KeyNone, PayloadSize: uint16(len(plain)), Payload: plain}
	return pkt.Encode()
}

// completeHandshake reads the RSA-wrapped session packet the engine just
// sent, decrypts it, and injects the one-byte confirmation response.
func (f *deviceFixture) completeHandshake(t *testing.T) *deviceSession {
	txLog := f.link.TxLog()
	require.Len(t, txLog, 1)

	pkt, err := protocol.DecodePacket(txLog[0])
	require.NoError(t, err)

	recBytes := rsaDecryptRaw(f.priv, pkt.Payload)
	rec, err := protocol.DecodeSession(recBytes)
	require.NoError(t, err)

	auth := session.NewAuthenticator(f.cfg.MacType, rec.MacKey[:int(f.cfg.MacType)])
	ds := &deviceSession{rec: rec, auth: auth, cfg: f.cfg}
	if f.cfg.KeySize != protocol.KeyNone {
		cipher, err := session.NewCipher(rec.Key[:int(f.cfg.KeySize)], rec.Aad[:])
		require.NoError(t, err)
		ds.cipher = cipher
	}

	resp := &protocol.Response{MacType: f.cfg.MacType, Token: rec.Token, PayloadSize: 1, Payload: []byte{0}}
	mac, err := auth.Compute(resp.MacSpan())
	require.NoError(t, err)
	copy(resp.Mac[:], mac)

	f.link.InjectRx(ds.sealResponse(t, resp))
	return ds
}

// respondToCommand reads the most recently sent command packet, decodes it,
// and injects a response carrying filler bytes and a trailing status byte.
func (f *deviceFixture) respondToCommand(t *testing.T, ds *deviceSession, payloadLen int, status byte) {
	txLog := f.link.TxLog()
	raw := txLog[len(txLog)-1]

	pkt, err := protocol.DecodePacket(raw)
	require.NoError(t, err)

	var plain []byte
	if ds.cipher != nil {
		plain, err = ds.cipher.Open(pkt)
		require.NoError(t, err)
	} else {
		plain = pkt.Payload
	}
	cmd, err := protocol.DecodeCommand(plain)
	require.NoError(t, err)

	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	if payloadLen > 0 {
		payload[payloadLen-1] = status
	}

	resp := &protocol.Response{MacType: ds.cfg.MacType, Token: cmd.Token, PayloadSize: uint16(len(payload)), Payload: payload}
	mac, err := ds.auth.Compute(resp.MacSpan())
	require.NoError(t, err)
	copy(resp.Mac[:], mac)

	f.link.InjectRx(ds.sealResponse(t, resp))
}

// rsaDecryptRaw undoes the session package's modulus-width, record-at-the-
// front RSA encoding: the decrypted block must be reconstituted at full
// modulus width before the leading record bytes can be sliced out.
func rsaDecryptRaw(priv *rsa.PrivateKey, ciphertext []byte) []byte {
	keySize := (priv.N.BitLen() + 7) / 8
	c := new(big.Int).SetBytes(ciphertext)
	m := new(big.Int).Exp(c, priv.D, priv.N)
	block := make([]byte, keySize)
	m.FillBytes(block)
	return block[:protocol.SessionRecordSize]
}

func TestEngineConnectCountsSession(t *testing.T) {
	cfg := session.Config{KeySize: protocol.Key256, MacType: protocol.MacHmacSha256, RsaKeySize: protocol.Rsa1024}
	fixture := newDeviceFixture(t, cfg)
	e := New(fixture.link, &fixture.priv.PublicKey, cfg, 0)

	done := make(chan error, 1)
	go func() { done <- e.Connect() }()
	waitForTxLog(fixture.link, 1)
	fixture.completeHandshake(t)
	require.NoError(t, <-done)

	require.EqualValues(t, 1, e.SessionCount())
}

func TestEngineGetBulkHealthyBlock(t *testing.T) {
	cfg := session.Config{KeySize: protocol.Key256, MacType: protocol.MacHmacSha256, RsaKeySize: protocol.Rsa1024}
	fixture := newDeviceFixture(t, cfg)
	e := New(fixture.link, &fixture.priv.PublicKey, cfg, 0)

	connDone := make(chan error, 1)
	go func() { connDone <- e.Connect() }()
	waitForTxLog(fixture.link, 1)
	ds := fixture.completeHandshake(t)
	require.NoError(t, <-connDone)

	dest := make([]byte, 16)
	bulkDone := make(chan error, 1)
	go func() { bulkDone <- e.GetBulk(protocol.CommandEntropy, dest, 16, false) }()
	waitForTxLog(fixture.link, 2)
	fixture.respondToCommand(t, ds, 17, 0)
	require.NoError(t, <-bulkDone)
}

func TestEngineGetBulkFailsOnUnhealthyStatus(t *testing.T) {
	cfg := session.Config{KeySize: protocol.KeyNone, MacType: protocol.MacNone, RsaKeySize: protocol.Rsa1024}
	fixture := newDeviceFixture(t, cfg)
	e := New(fixture.link, &fixture.priv.PublicKey, cfg, 0)

	connDone := make(chan error, 1)
	go func() { connDone <- e.Connect() }()
	waitForTxLog(fixture.link, 1)
	ds := fixture.completeHandshake(t)
	require.NoError(t, <-connDone)

	dest := make([]byte, 8)
	bulkDone := make(chan error, 1)
	go func() { bulkDone <- e.GetBulk(protocol.CommandEntropy, dest, 8, false) }()
	waitForTxLog(fixture.link, 2)
	fixture.respondToCommand(t, ds, 9, byte(protocol.RngStatusRepetitionCount))
	require.Error(t, <-bulkDone)
}

func waitForTxLog(link *mock.Link, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(link.TxLog()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
