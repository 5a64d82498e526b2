package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	c := &Command{
		MacType:     MacHmacSha256,
		CmdType:     CommandEntropy,
		Token:       0x0102030405060708,
		PayloadSize: 4,
		Payload:     []byte{1, 2, 3, 4},
	}
	copy(c.Mac[:], []byte("0123456789abcdef0123456789abcdef"))

	encoded := EncodeCommand(c)
	require.Equal(t, CommandPayloadSize(len(c.Payload), KeyNone), len(encoded))

	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	require.Equal(t, c.CmdType, decoded.CmdType)
	require.Equal(t, c.Token, decoded.Token)
	require.Equal(t, c.Payload, decoded.Payload)
}

func TestCommandPayloadSizePadsToKeySize(t *testing.T) {
	require.Equal(t, CommandHeaderSize+4, CommandPayloadSize(4, KeyNone))
	// header (45) + 4 bytes = 49, next multiple of 16 is 64.
	require.Equal(t, 64, CommandPayloadSize(4, Key128))
	// header (45) + 4 bytes = 49, next multiple of 32 is 64.
	require.Equal(t, 64, CommandPayloadSize(4, Key256))
}

func TestPadCommandZeroPadsToKeySizeMultiple(t *testing.T) {
	c := &Command{CmdType: CommandEntropy, Token: 1, PayloadSize: 1, Payload: []byte{0xff}}
	padded := PadCommand(c, Key128)
	require.Equal(t, CommandPayloadSize(1, Key128), len(padded))

	decoded, err := DecodeCommand(padded)
	require.NoError(t, err)
	require.Equal(t, c.Payload, decoded.Payload)
}

func TestCommandMacSpan(t *testing.T) {
	c := &Command{CmdType: CommandNoise, Token: 42, PayloadSize: 2, Payload: []byte{9, 9}}
	span := c.MacSpan()
	require.Len(t, span, 2+8+2+2)
}

func TestResponseRoundTrip(t *testing.T) {
	r := &Response{
		MacType:     MacHmacSha256,
		Token:       99,
		PayloadSize: 3,
		Payload:     []byte{7, 8, 9},
	}
	encoded := EncodeResponse(r)
	require.Equal(t, ResponsePacketPayloadSize(len(r.Payload), KeyNone), len(encoded))

	decoded, err := DecodeResponse(encoded)
	require.NoError(t, err)
	require.Equal(t, r.Token, decoded.Token)
	require.Equal(t, r.Payload, decoded.Payload)
}

func TestDecodeCommandTruncated(t *testing.T) {
	_, err := DecodeCommand([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestPacketRoundTrip(t *testing.T) {
	p := &Packet{
		Type:        PacketAES,
		KeySize:     Key256,
		PayloadSize: 5,
		Payload:     []byte{1, 2, 3, 4, 5},
	}
	encoded := EncodePacket(p)
	decoded, err := DecodePacket(encoded)
	require.NoError(t, err)
	require.Equal(t, p.Type, decoded.Type)
	require.Equal(t, p.Payload, decoded.Payload)
}

func TestSessionRoundTrip(t *testing.T) {
	s := &Session{
		KeyType: SessionKeyAES,
		KeySize: Key256,
		Token:   0xdeadbeef,
		MacType: MacHmacSha256,
	}
	copy(s.Key[:], []byte("0123456789abcdef0123456789abcdef"))

	encoded := s.Encode()
	require.Len(t, encoded, SessionRecordSize)

	decoded, err := DecodeSession(encoded)
	require.NoError(t, err)
	require.Equal(t, s.Token, decoded.Token)
	require.Equal(t, s.Key, decoded.Key)
}

func TestDeviceRngStatusString(t *testing.T) {
	require.True(t, RngStatusHealthy.IsHealthy())
	require.False(t, RngStatusRepetitionCount.IsHealthy())
	require.Equal(t, "repetition-count-failure", RngStatusRepetitionCount.String())
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	payload := make([]byte, DeviceInfoSize)
	payload[0] = 2
	payload[1] = 1
	copy(payload[2:], []byte("AR1234567890123"))
	copy(payload[2+DeviceInfoIdentifierSize:], []byte("AlphaRNG-PRO123"))

	info, err := DecodeDeviceInfo(payload)
	require.NoError(t, err)
	require.Equal(t, byte(2), info.MajorVersion)
	require.Equal(t, "AR1234567890123", info.IdentifierString())
}
