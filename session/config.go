package session

import "github.com/tectrolabs-go/alpharng/protocol"

// Config describes the cryptographic parameters negotiated for a session:
// which AES key size and MAC digest to use, and which RSA key wraps the
// session key during the handshake.
type Config struct {
	KeySize    protocol.KeySize
	MacType    protocol.MacType
	RsaKeySize protocol.RsaKeySize
	// UsingAltKey is true when the caller supplied their own 2048-bit PEM
	// file; it selects PacketAltRSA2048 instead of PacketRSA2048 for the
	// handshake packet type.
	UsingAltKey bool
}

// packetType returns the Packet.Type to use when wrapping the RSA-encrypted
// session record, per spec: pkAltRSA2048 for a user-supplied key, else
// pkRSA2048/pkRSA1024 keyed off the configured modulus size.
func (c Config) packetType() protocol.PacketType {
	if c.UsingAltKey {
		return protocol.PacketAltRSA2048
	}
	if c.RsaKeySize == protocol.Rsa1024 {
		return protocol.PacketRSA1024
	}
	return protocol.PacketRSA2048
}
