package session

import (
	"crypto/rsa"
	"time"

	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/protocol"
	"github.com/tectrolabs-go/alpharng/transport"
)

// State bundles the key material and helpers a successful handshake
// establishes: the AES cipher, the HMAC authenticator and the token
// minter, plus the session token the device confirmed.
type State struct {
	Cipher *Cipher
	Auth   *Authenticator
	Tokens *TokenSource
	Token  uint64
	Config Config
}

// Handshake builds a random Session record, RSA-wraps it and exchanges it
// over link, then waits for the device's one-byte status confirmation. A
// failure at any step is returned as the failure of the whole exchange;
// Handshake does not retry, and neither Engine.Connect nor the facade
// retries it.
func Handshake(link transport.Link, cfg Config, pub *rsa.PublicKey, timeout time.Duration) (*State, error) {
	tokens, err := NewTokenSource()
	if err != nil {
		return nil, err
	}
	token, err := tokens.Next()
	if err != nil {
		return nil, err
	}

	aesKey, err := randomBytes(int(cfg.KeySize))
	if err != nil {
		return nil, err
	}
	macKeyLen := int(cfg.MacType)
	macKey, err := randomBytes(macKeyLen)
	if err != nil {
		return nil, err
	}
	aad, err := randomBytes(protocol.SessionAadSize)
	if err != nil {
		return nil, err
	}

	rec := &protocol.Session{
		KeyType: protocol.SessionKeyAES,
		KeySize: cfg.KeySize,
		Token:   token,
		MacType: cfg.MacType,
	}
	copy(rec.Key[:], aesKey)
	copy(rec.Aad[:], aad)
	copy(rec.MacKey[:], macKey)

	auth := NewAuthenticator(cfg.MacType, macKey)
	mac, err := auth.Compute(rec.MacSpan())
	if err != nil {
		return nil, err
	}
	copy(rec.Mac[:], mac)

	wrapped, err := rsaEncryptNoPadding(pub, rec.Encode())
	if err != nil {
		return nil, errs.Wrap(errs.KindSession, err, "rsa wrap session record")
	}

	pkt := &protocol.Packet{
		Type:        cfg.packetType(),
		KeySize:     cfg.KeySize,
		PayloadSize: uint16(len(wrapped)),
		Payload:     wrapped,
	}

	var cipher *Cipher
	if cfg.KeySize != protocol.KeyNone {
		cipher, err = NewCipher(aesKey, aad)
		if err != nil {
			return nil, err
		}
		iv, ivErr := cipher.nextIV()
		if ivErr != nil {
			return nil, ivErr
		}
		pkt.IV = iv
	}

	if err := link.Write(pkt.Encode()); err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "send handshake packet")
	}

	resp, err := readResponseStatus(link, cipher, auth, token, timeout)
	if err != nil {
		return nil, err
	}
	if resp != 0 {
		return nil, errs.Wrapf(errs.KindProtocol, nil, "device rejected handshake, status %d", resp)
	}

	return &State{Cipher: cipher, Auth: auth, Tokens: tokens, Token: token, Config: cfg}, nil
}

// readResponseStatus reads the single-byte confirmation the device sends
// after accepting a session key: a Packet wrapping a Response whose
// payload is one status byte, with cipher/MAC applied per cfg.
func readResponseStatus(link transport.Link, cipher *Cipher, auth *Authenticator, wantToken uint64, timeout time.Duration) (byte, error) {
	raw, err := link.Read(timeout)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransport, err, "read handshake confirmation")
	}
	pkt, err := protocol.DecodePacket(raw)
	if err != nil {
		return 0, err
	}

	var plain []byte
	if cipher != nil {
		plain, err = cipher.Open(pkt)
		if err != nil {
			return 0, err
		}
	} else {
		plain = pkt.Payload
	}

	resp, err := protocol.DecodeResponse(plain)
	if err != nil {
		return 0, err
	}
	if err := auth.Verify(resp.MacSpan(), resp.Mac[:]); err != nil {
		return 0, err
	}
	if err := Verify(wantToken, resp.Token); err != nil {
		return 0, err
	}
	if len(resp.Payload) < 1 {
		return 0, errs.New(errs.KindProtocol, "handshake confirmation payload empty")
	}
	return resp.Payload[0], nil
}
