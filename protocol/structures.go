package protocol

import (
	"encoding/binary"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

// Packet is the outermost wire record exchanged with the device: an
// optionally AES-GCM sealed envelope (PacketAES) or a raw RSA-wrapped
// session key upload (PacketRSA1024 / PacketRSA2048 / PacketAltRSA2048).
type Packet struct {
	Type        PacketType
	KeySize     KeySize
	IV          [PacketIVSize]byte
	Tag         [PacketTagSize]byte
	PayloadSize uint16
	Payload     []byte
}

// Encode serializes the packet header followed by its payload.
func (p *Packet) Encode() []byte {
	buf := make([]byte, PacketHeaderSize+len(p.Payload))
	off := 0
	buf[off] = byte(p.Type)
	off++
	buf[off] = byte(p.KeySize)
	off++
	copy(buf[off:], p.IV[:])
	off += PacketIVSize
	copy(buf[off:], p.Tag[:])
	off += PacketTagSize
	binary.LittleEndian.PutUint16(buf[off:], p.PayloadSize)
	off += 2
	copy(buf[off:], p.Payload)
	return buf
}

// DecodePacket parses a packet header and the payload bytes that follow it.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < PacketHeaderSize {
		return nil, errs.New(errs.KindProtocol, "packet shorter than header")
	}
	p := &Packet{}
	off := 0
	p.Type = PacketType(data[off])
	off++
	p.KeySize = KeySize(data[off])
	off++
	copy(p.IV[:], data[off:off+PacketIVSize])
	off += PacketIVSize
	copy(p.Tag[:], data[off:off+PacketTagSize])
	off += PacketTagSize
	p.PayloadSize = binary.LittleEndian.Uint16(data[off:])
	off += 2
	if len(data)-off < int(p.PayloadSize) {
		return nil, errs.New(errs.KindProtocol, "packet payload truncated")
	}
	p.Payload = append([]byte(nil), data[off:off+int(p.PayloadSize)]...)
	return p, nil
}

// Command is the plaintext request record sealed inside a Packet once a
// session is established.
type Command struct {
	MacType     MacType
	Mac         [CommandMacSize]byte
	CmdType     CommandType
	Token       uint64
	PayloadSize uint16
	Payload     []byte
}

// Encode serializes the command header followed by its payload.
func (c *Command) Encode() []byte {
	buf := make([]byte, CommandHeaderSize+len(c.Payload))
	off := 0
	buf[off] = byte(c.MacType)
	off++
	copy(buf[off:], c.Mac[:])
	off += CommandMacSize
	binary.LittleEndian.PutUint16(buf[off:], uint16(c.CmdType))
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], c.Token)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], c.PayloadSize)
	off += 2
	copy(buf[off:], c.Payload)
	return buf
}

// DecodeCommand parses a command header and the payload bytes that follow.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) < CommandHeaderSize {
		return nil, errs.New(errs.KindProtocol, "command shorter than header")
	}
	c := &Command{}
	off := 0
	c.MacType = MacType(data[off])
	off++
	copy(c.Mac[:], data[off:off+CommandMacSize])
	off += CommandMacSize
	c.CmdType = CommandType(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	c.Token = binary.LittleEndian.Uint64(data[off:])
	off += 8
	c.PayloadSize = binary.LittleEndian.Uint16(data[off:])
	off += 2
	if len(data)-off < int(c.PayloadSize) {
		return nil, errs.New(errs.KindProtocol, "command payload truncated")
	}
	c.Payload = append([]byte(nil), data[off:off+int(c.PayloadSize)]...)
	return c, nil
}

// MacSpan returns the byte span over which the command MAC is computed:
// cmdType ‖ token ‖ payloadSize ‖ payload.
func (c *Command) MacSpan() []byte {
	buf := make([]byte, 2+8+2+len(c.Payload))
	binary.LittleEndian.PutUint16(buf, uint16(c.CmdType))
	binary.LittleEndian.PutUint64(buf[2:], c.Token)
	binary.LittleEndian.PutUint16(buf[10:], c.PayloadSize)
	copy(buf[12:], c.Payload)
	return buf
}

// Response is the plaintext reply record sealed inside a Packet.
type Response struct {
	MacType     MacType
	Mac         [ResponseMacSize]byte
	Token       uint64
	PayloadSize uint16
	Payload     []byte
}

// Encode serializes the response header followed by its payload.
func (r *Response) Encode() []byte {
	buf := make([]byte, ResponseHeaderSize+len(r.Payload))
	off := 0
	buf[off] = byte(r.MacType)
	off++
	copy(buf[off:], r.Mac[:])
	off += ResponseMacSize
	binary.LittleEndian.PutUint64(buf[off:], r.Token)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], r.PayloadSize)
	off += 2
	copy(buf[off:], r.Payload)
	return buf
}

// DecodeResponse parses a response header and the payload bytes that follow.
func DecodeResponse(data []byte) (*Response, error) {
	if len(data) < ResponseHeaderSize {
		return nil, errs.New(errs.KindProtocol, "response shorter than header")
	}
	r := &Response{}
	off := 0
	r.MacType = MacType(data[off])
	off++
	copy(r.Mac[:], data[off:off+ResponseMacSize])
	off += ResponseMacSize
	r.Token = binary.LittleEndian.Uint64(data[off:])
	off += 8
	r.PayloadSize = binary.LittleEndian.Uint16(data[off:])
	off += 2
	if len(data)-off < int(r.PayloadSize) {
		return nil, errs.New(errs.KindProtocol, "response payload truncated")
	}
	r.Payload = append([]byte(nil), data[off:off+int(r.PayloadSize)]...)
	return r, nil
}

// MacSpan returns the byte span over which the response MAC is computed:
// token ‖ payloadSize ‖ payload.
func (r *Response) MacSpan() []byte {
	buf := make([]byte, 8+2+len(r.Payload))
	binary.LittleEndian.PutUint64(buf, r.Token)
	binary.LittleEndian.PutUint16(buf[8:], r.PayloadSize)
	copy(buf[10:], r.Payload)
	return buf
}

// Session carries the AES key and MAC key from host to device, wrapped in a
// PacketRSA* packet during the handshake.
type Session struct {
	KeyType SessionKeyType
	KeySize KeySize
	Key     [SessionKeyMax]byte
	Token   uint64
	Aad     [SessionAadSize]byte
	MacType MacType
	MacKey  [SessionMacKeyMax]byte
	Mac     [SessionMacSize]byte
}

// Encode serializes the fixed-layout session record.
func (s *Session) Encode() []byte {
	buf := make([]byte, SessionRecordSize)
	off := 0
	buf[off] = byte(s.KeyType)
	off++
	buf[off] = byte(s.KeySize)
	off++
	copy(buf[off:], s.Key[:])
	off += SessionKeyMax
	binary.LittleEndian.PutUint64(buf[off:], s.Token)
	off += 8
	copy(buf[off:], s.Aad[:])
	off += SessionAadSize
	buf[off] = byte(s.MacType)
	off++
	copy(buf[off:], s.MacKey[:])
	off += SessionMacKeyMax
	copy(buf[off:], s.Mac[:])
	return buf
}

// DecodeSession parses a fixed-layout session record.
func DecodeSession(data []byte) (*Session, error) {
	if len(data) < SessionRecordSize {
		return nil, errs.New(errs.KindProtocol, "session record shorter than expected")
	}
	s := &Session{}
	off := 0
	s.KeyType = SessionKeyType(data[off])
	off++
	s.KeySize = KeySize(data[off])
	off++
	copy(s.Key[:], data[off:off+SessionKeyMax])
	off += SessionKeyMax
	s.Token = binary.LittleEndian.Uint64(data[off:])
	off += 8
	copy(s.Aad[:], data[off:off+SessionAadSize])
	off += SessionAadSize
	s.MacType = MacType(data[off])
	off++
	copy(s.MacKey[:], data[off:off+SessionMacKeyMax])
	off += SessionMacKeyMax
	copy(s.Mac[:], data[off:off+SessionMacSize])
	return s, nil
}

// MacSpan returns the byte span the session MAC is computed over: the whole
// record excluding the trailing Mac field.
func (s *Session) MacSpan() []byte {
	full := s.Encode()
	return full[:len(full)-SessionMacSize]
}

// DeviceInfo describes the attached device's identity, reported in response
// to CommandDeviceInfo.
type DeviceInfo struct {
	MajorVersion byte
	MinorVersion byte
	Identifier   [DeviceInfoIdentifierSize]byte
	Model        [DeviceInfoModelSize]byte
}

// DecodeDeviceInfo parses a device info payload.
func DecodeDeviceInfo(data []byte) (*DeviceInfo, error) {
	if len(data) < DeviceInfoSize {
		return nil, errs.New(errs.KindProtocol, "device info payload too short")
	}
	d := &DeviceInfo{}
	off := 0
	d.MajorVersion = data[off]
	off++
	d.MinorVersion = data[off]
	off++
	copy(d.Identifier[:], data[off:off+DeviceInfoIdentifierSize])
	off += DeviceInfoIdentifierSize
	copy(d.Model[:], data[off:off+DeviceInfoModelSize])
	return d, nil
}

// IdentifierString returns the NUL-trimmed device identifier.
func (d *DeviceInfo) IdentifierString() string {
	return trimNul(d.Identifier[:])
}

// ModelString returns the NUL-trimmed device model name.
func (d *DeviceInfo) ModelString() string {
	return trimNul(d.Model[:])
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// FrequencyTables holds the device's two 256-entry byte-frequency tables,
// one per noise source.
type FrequencyTables struct {
	Source1 [FrequencyTableEntries]uint16
	Source2 [FrequencyTableEntries]uint16
}

// DecodeFrequencyTables parses the frequency table payload.
func DecodeFrequencyTables(data []byte) (*FrequencyTables, error) {
	if len(data) < FrequencyTablesSize {
		return nil, errs.New(errs.KindProtocol, "frequency tables payload too short")
	}
	ft := &FrequencyTables{}
	off := 0
	for i := 0; i < FrequencyTableEntries; i++ {
		ft.Source1[i] = binary.LittleEndian.Uint16(data[off:])
		off += 2
	}
	for i := 0; i < FrequencyTableEntries; i++ {
		ft.Source2[i] = binary.LittleEndian.Uint16(data[off:])
		off += 2
	}
	return ft, nil
}
