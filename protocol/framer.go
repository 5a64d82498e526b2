package protocol

// CommandPayloadSize returns the Packet payload size (excluding the packet
// header) of a command with the given plaintext request payload length:
// the encoded Command record, padded up to a multiple of
// keySize when AES is enabled (KeyNone leaves it unpadded).
func CommandPayloadSize(payloadLen int, keySize KeySize) int {
	return padToKeySize(CommandHeaderSize+payloadLen, keySize)
}

// ResponsePacketPayloadSize returns the Packet payload size (excluding the
// packet header) expected for a given plaintext reply payload length: the
// encoded Response record, padded up to a multiple of keySize when AES is
// enabled.
func ResponsePacketPayloadSize(payloadLen int, keySize KeySize) int {
	return padToKeySize(ResponseHeaderSize+payloadLen, keySize)
}

// padToKeySize rounds size up to the next multiple of keySize, matching the
// device's own remainder-based padding; KeyNone sessions are never padded.
func padToKeySize(size int, keySize KeySize) int {
	if keySize == KeyNone {
		return size
	}
	k := int(keySize)
	if remainder := size % k; remainder > 0 {
		size += k - remainder
	}
	return size
}

// padPlaintext zero-pads plaintext up to the given total size, matching the
// device's practice of memset-zeroing the command/response buffer before
// copying the meaningful bytes into its front.
func padPlaintext(plaintext []byte, totalSize int) []byte {
	if len(plaintext) >= totalSize {
		return plaintext
	}
	padded := make([]byte, totalSize)
	copy(padded, plaintext)
	return padded
}

// PadCommand returns cmd's encoded bytes, zero-padded to a multiple of
// keySize when AES is enabled.
func PadCommand(cmd *Command, keySize KeySize) []byte {
	plain := cmd.Encode()
	return padPlaintext(plain, CommandPayloadSize(len(cmd.Payload), keySize))
}

// PadResponse returns resp's encoded bytes, zero-padded to a multiple of
// keySize when AES is enabled.
func PadResponse(resp *Response, keySize KeySize) []byte {
	plain := resp.Encode()
	return padPlaintext(plain, ResponsePacketPayloadSize(len(resp.Payload), keySize))
}

// EncodeCommand serializes a Command. Free-function wrapper kept alongside
// the method form so callers can use either the value or a pointer receiver
// without an extra dereference at call sites that build commands inline.
func EncodeCommand(c *Command) []byte { return c.Encode() }

// EncodeResponse serializes a Response.
func EncodeResponse(r *Response) []byte { return r.Encode() }

// EncodeSession serializes a Session.
func EncodeSession(s *Session) []byte { return s.Encode() }

// EncodePacket serializes a Packet.
func EncodePacket(p *Packet) []byte { return p.Encode() }
