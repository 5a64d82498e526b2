// Package engine orchestrates command/response exchanges with the device:
// retries, TTL-triggered session rekey, receiver draining, bulk chunking
// and the no-cipher fast path. It is the single place that knows how to
// turn a logical request into wire traffic and back.
package engine

import (
	"crypto/rsa"
	"time"

	"github.com/tectrolabs-go/alpharng/healthtest"
	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/protocol"
	"github.com/tectrolabs-go/alpharng/session"
	"github.com/tectrolabs-go/alpharng/transport"
)

const (
	slowTimeout = 4000 * time.Millisecond
	fastTimeout = 300 * time.Millisecond

	maxAttempts  = 3
	retrySleep   = 100 * time.Millisecond
	drainBufSize = 128
)

// Engine drives one device connection: one Link, one session.State, one
// health-test pair. It carries no goroutines; every method call runs to
// completion on the caller's goroutine, per the single-threaded-per-device
// resource model.
type Engine struct {
	link   transport.Link
	rsaPub *rsa.PublicKey
	cfg    session.Config

	state   *session.State
	timeout time.Duration

	ttl      time.Duration
	expireAt time.Time

	health *healthtest.Tests

	retryCount   uint64
	sessionCount uint64
}

// New builds an Engine bound to an already-open link; Connect must be
// called before any command is executed.
func New(link transport.Link, rsaPub *rsa.PublicKey, cfg session.Config, ttl time.Duration) *Engine {
	return &Engine{
		link:    link,
		rsaPub:  rsaPub,
		cfg:     cfg,
		timeout: slowTimeout,
		ttl:     ttl,
		health:  healthtest.New(),
	}
}

// HealthTests exposes the engine's health-test state for configuration
// (threshold, enable/disable) by the facade.
func (e *Engine) HealthTests() *healthtest.Tests { return e.health }

// RetryCount returns how many retry attempts have been made across the
// engine's lifetime.
func (e *Engine) RetryCount() uint64 { return e.retryCount }

// SessionCount returns how many successful handshakes the engine has
// performed, including the initial connect and every TTL-triggered rekey.
func (e *Engine) SessionCount() uint64 { return e.sessionCount }

// SetTTL changes the session time-to-live; zero disables TTL-triggered
// rekey. Takes effect starting with the current session's expiry check.
func (e *Engine) SetTTL(ttl time.Duration) {
	e.ttl = ttl
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
}

// Connect performs the handshake and switches the engine to the fast
// steady-state timeout on success.
func (e *Engine) Connect() error {
	state, err := session.Handshake(e.link, e.cfg, e.rsaPub, slowTimeout)
	if err != nil {
		return err
	}
	e.state = state
	e.timeout = fastTimeout
	e.sessionCount++
	if e.ttl > 0 {
		e.expireAt = time.Now().Add(e.ttl)
	}
	return nil
}

// ensureFreshSession rekeys the session if a non-zero TTL has elapsed.
func (e *Engine) ensureFreshSession() error {
	if e.ttl <= 0 || e.state == nil {
		return nil
	}
	if time.Now().Before(e.expireAt) {
		return nil
	}
	e.timeout = slowTimeout
	return e.Connect()
}

// drainReceiver reads and discards whatever is pending on the link using
// the fast timeout, until a read returns nothing — used after a suspected
// desync before retrying a command.
func (e *Engine) drainReceiver() {
	for {
		data, err := e.link.Read(fastTimeout)
		if err != nil || len(data) == 0 {
			return
		}
	}
}

// ExecuteCommand sends cmdType with payload and waits for a response whose
// plaintext payload is exactly expectedPayloadBytes long, making up to
// maxAttempts attempts with a drain-and-backoff between them.
func (e *Engine) ExecuteCommand(cmdType protocol.CommandType, payload []byte, expectedPayloadBytes int) (*protocol.Response, error) {
	if err := e.ensureFreshSession(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.retryCount++
			time.Sleep(retrySleep)
			e.drainReceiver()
			time.Sleep(retrySleep)
		}

		resp, err := e.executeCommandOnce(cmdType, payload, expectedPayloadBytes)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, errs.Wrap(errs.KindProtocol, lastErr, "command failed after retries")
}

func (e *Engine) executeCommandOnce(cmdType protocol.CommandType, payload []byte, expectedPayloadBytes int) (*protocol.Response, error) {
	if e.state == nil {
		return nil, errs.New(errs.KindSession, "engine not connected")
	}

	token, err := e.state.Tokens.Next()
	if err != nil {
		return nil, err
	}

	cmd := &protocol.Command{
		MacType:     e.cfg.MacType,
		CmdType:     cmdType,
		Token:       token,
		PayloadSize: uint16(len(payload)),
		Payload:     payload,
	}
	mac, err := e.state.Auth.Compute(cmd.MacSpan())
	if err != nil {
		return nil, err
	}
	copy(cmd.Mac[:], mac)

	var pkt *protocol.Packet
	if e.cfg.KeySize != protocol.KeyNone {
		pkt, err = e.state.Cipher.Seal(protocol.PacketAES, e.cfg.KeySize, protocol.PadCommand(cmd, e.cfg.KeySize))
		if err != nil {
			return nil, err
		}
	} else {
		plain := protocol.PadCommand(cmd, e.cfg.KeySize)
		pkt = &protocol.Packet{Type: protocol.PacketAES, KeySize: protocol.KeyNone, PayloadSize: uint16(len(plain)), Payload: plain}
	}

	if err := e.link.Write(pkt.Encode()); err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "write command packet")
	}

	raw, err := e.link.Read(e.timeout)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "read response packet")
	}
	respPkt, err := protocol.DecodePacket(raw)
	if err != nil {
		return nil, err
	}
	if respPkt.Type != protocol.PacketAES || respPkt.KeySize != e.cfg.KeySize {
		return nil, errs.New(errs.KindProtocol, "unexpected response packet type or key size")
	}

	var plain []byte
	if e.cfg.KeySize != protocol.KeyNone {
		plain, err = e.state.Cipher.Open(respPkt)
		if err != nil {
			return nil, err
		}
	} else {
		plain = respPkt.Payload
	}

	resp, err := protocol.DecodeResponse(plain)
	if err != nil {
		return nil, err
	}
	if resp.MacType != e.cfg.MacType {
		return nil, errs.New(errs.KindProtocol, "response mac type mismatch")
	}
	if int(resp.PayloadSize) > protocol.ResponsePayloadMax {
		return nil, errs.New(errs.KindProtocol, "response payload exceeds maximum")
	}
	if expectedPayloadBytes >= 0 && int(resp.PayloadSize) != expectedPayloadBytes {
		return nil, errs.New(errs.KindProtocol, "response payload size mismatch")
	}
	if err := e.state.Auth.Verify(resp.MacSpan(), resp.Mac[:]); err != nil {
		return nil, err
	}
	if err := session.Verify(cmd.Token, resp.Token); err != nil {
		return nil, err
	}

	return resp, nil
}

// GetBulk reads len(dest) bytes from the device in blockSize chunks,
// issuing cmdType for each chunk and checking the trailing device status
// byte. When testData is true the health tests restart at the beginning
// of each block and run over the block's bytes, failing the read if they
// latch.
func (e *Engine) GetBulk(cmdType protocol.CommandType, dest []byte, blockSize int, testData bool) error {
	offset := 0
	for offset < len(dest) {
		n := blockSize
		if remaining := len(dest) - offset; remaining < n {
			n = remaining
		}

		if testData {
			e.health.Restart()
		}

		resp, err := e.ExecuteCommand(cmdType, nil, n+1)
		if err != nil {
			return err
		}

		status := protocol.DeviceRngStatus(resp.Payload[n])
		if !status.IsHealthy() {
			return errs.Wrapf(errs.KindHealthTest, nil, "device reported rng status %s", status)
		}

		copy(dest[offset:offset+n], resp.Payload[:n])

		if testData {
			e.health.Test(resp.Payload[:n])
			if e.health.Status() != 0 {
				return errs.New(errs.KindHealthTest, "health test latched during bulk read")
			}
		}

		offset += n
	}
	return nil
}

// NoCipherGetBulk is the fast path for when both MAC and cipher are
// disabled: a single opcode byte is written directly to the link and
// blockSize+1 bytes are read back, bypassing Command/Response framing
// entirely. Same chunking, retry and health-test rules as GetBulk apply.
func (e *Engine) NoCipherGetBulk(opcode byte, dest []byte, blockSize int, testData bool) error {
	if e.cfg.MacType != protocol.MacNone || e.cfg.KeySize != protocol.KeyNone {
		return errs.New(errs.KindConfig, "no-cipher fast path requires mac and cipher disabled")
	}

	offset := 0
	for offset < len(dest) {
		n := blockSize
		if remaining := len(dest) - offset; remaining < n {
			n = remaining
		}

		if testData {
			e.health.Restart()
		}

		chunk, err := e.noCipherRoundTrip(opcode, n+1)
		if err != nil {
			return err
		}

		status := protocol.DeviceRngStatus(chunk[n])
		if !status.IsHealthy() {
			return errs.Wrapf(errs.KindHealthTest, nil, "device reported rng status %s", status)
		}
		copy(dest[offset:offset+n], chunk[:n])

		if testData {
			e.health.Test(chunk[:n])
			if e.health.Status() != 0 {
				return errs.New(errs.KindHealthTest, "health test latched during bulk read")
			}
		}

		offset += n
	}
	return nil
}

func (e *Engine) noCipherRoundTrip(opcode byte, expectedBytes int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.retryCount++
			time.Sleep(retrySleep)
			e.drainReceiver()
			time.Sleep(retrySleep)
		}

		if err := e.link.Write([]byte{opcode}); err != nil {
			lastErr = errs.Wrap(errs.KindTransport, err, "write no-cipher opcode")
			continue
		}

		out := make([]byte, 0, expectedBytes)
		for len(out) < expectedBytes {
			chunk, err := e.link.Read(e.timeout)
			if err != nil {
				lastErr = err
				break
			}
			out = append(out, chunk...)
		}
		if len(out) == expectedBytes {
			return out, nil
		}
		if lastErr == nil {
			lastErr = errs.New(errs.KindProtocol, "no-cipher response truncated")
		}
	}
	return nil, errs.Wrap(errs.KindProtocol, lastErr, "no-cipher round trip failed after retries")
}
