// Package alpharng provides a façade over the AlphaRNG USB hardware random
// number generator: device discovery, encrypted session establishment, and
// the bulk read, extraction and range-sequence operations built on top of
// it.
package alpharng

import (
	"bufio"
	"crypto/rsa"
	"os"
	"time"

	"github.com/tectrolabs-go/alpharng/engine"
	"github.com/tectrolabs-go/alpharng/extractor"
	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/internal/rsakeys"
	"github.com/tectrolabs-go/alpharng/protocol"
	"github.com/tectrolabs-go/alpharng/rangeseq"
	"github.com/tectrolabs-go/alpharng/session"
	"github.com/tectrolabs-go/alpharng/transport"
	"github.com/tectrolabs-go/alpharng/transport/serial"

	"go.uber.org/zap"
)

const fileChunkSize = 100_000

// ApiFacade is the single entry point applications use: one instance per
// device, holding exclusive use of the transport from Connect to
// Disconnect.
type ApiFacade struct {
	cfg Config

	link   transport.Link
	engine *engine.Engine
	info   *protocol.DeviceInfo

	log       *zap.Logger
	lastError error
}

// New builds a disconnected facade for the given configuration.
func New(cfg Config) *ApiFacade {
	return &ApiFacade{cfg: cfg, log: cfg.logger()}
}

// LastError returns the error from the most recently failed public call,
// or nil if the last call succeeded.
func (f *ApiFacade) LastError() error { return f.lastError }

func (f *ApiFacade) fail(err error) error {
	f.lastError = err
	f.log.Error("alpharng call failed", zap.Error(err))
	return err
}

func (f *ApiFacade) ok() error {
	f.lastError = nil
	return nil
}

// Connect enumerates attached devices, opens the one at deviceIndex,
// performs the RSA handshake and fetches the device's identity.
func (f *ApiFacade) Connect(deviceIndex int) error {
	enumerator := serial.LinuxEnumerator{}
	paths, err := enumerator.Enumerate()
	if err != nil {
		return f.fail(errs.Wrap(errs.KindTransport, err, "enumerate devices"))
	}
	if deviceIndex < 0 || deviceIndex >= len(paths) {
		return f.fail(errs.New(errs.KindConfig, "device index out of range"))
	}

	link, err := serial.Open(paths[deviceIndex], 4*time.Second)
	if err != nil {
		return f.fail(err)
	}
	return f.connectOverLink(link)
}

// connectOverLink runs the handshake and identity fetch over an
// already-open link, factored out so tests can exercise it with a mock
// transport instead of a real serial port.
func (f *ApiFacade) connectOverLink(link transport.Link) error {
	pub, usingAlt, err := f.resolvePublicKey()
	if err != nil {
		link.Close()
		return f.fail(err)
	}

	sessCfg := session.Config{
		KeySize:     f.cfg.KeySize,
		MacType:     f.cfg.MacType,
		RsaKeySize:  f.cfg.RsaKeySize,
		UsingAltKey: usingAlt,
	}

	e := engine.New(link, pub, sessCfg, f.cfg.SessionTTL)
	if err := e.Connect(); err != nil {
		link.Close()
		return f.fail(err)
	}

	resp, err := e.ExecuteCommand(protocol.CommandDeviceInfo, nil, protocol.DeviceInfoSize)
	if err != nil {
		link.Close()
		return f.fail(err)
	}
	info, err := protocol.DecodeDeviceInfo(resp.Payload)
	if err != nil {
		link.Close()
		return f.fail(err)
	}

	f.link = link
	f.engine = e
	f.info = info
	f.log.Info("connected to device", zap.String("path", link.Path()), zap.String("model", info.ModelString()))
	return f.ok()
}

// resolvePublicKey picks the RSA public key the handshake wraps the
// session key with: the caller's PEM file if configured (selecting the
// alternate 2048-bit handshake path), otherwise the embedded key matching
// the configured modulus size.
func (f *ApiFacade) resolvePublicKey() (*rsa.PublicKey, bool, error) {
	if f.cfg.AltPemFile != "" {
		pub, err := rsakeys.LoadFromFile(f.cfg.AltPemFile)
		if err != nil {
			return nil, false, err
		}
		return pub, true, nil
	}
	if f.cfg.RsaKeySize == protocol.Rsa1024 {
		pub, err := rsakeys.Embedded1024()
		return pub, false, err
	}
	pub, err := rsakeys.Embedded2048()
	return pub, false, err
}

// Disconnect closes the transport and invalidates the session; it is safe
// to call even if Connect was never called or already failed.
func (f *ApiFacade) Disconnect() error {
	if f.link == nil {
		return f.ok()
	}
	err := f.link.Close()
	f.link = nil
	f.engine = nil
	f.info = nil
	f.log.Info("disconnected from device")
	if err != nil {
		return f.fail(errs.Wrap(errs.KindTransport, err, "close transport"))
	}
	return f.ok()
}

func (f *ApiFacade) requireConnected() error {
	if f.engine == nil {
		return errs.New(errs.KindSession, "not connected")
	}
	return nil
}

// GetNoiseSource1 fills buf with bytes from the device's first noise
// source, health-tested as they arrive.
func (f *ApiFacade) GetNoiseSource1(buf []byte) error {
	return f.bulk(protocol.CommandNoiseSource1, buf, protocol.BlockSizeBulk, true)
}

// GetNoiseSource2 fills buf with bytes from the device's second noise
// source, health-tested as they arrive.
func (f *ApiFacade) GetNoiseSource2(buf []byte) error {
	return f.bulk(protocol.CommandNoiseSource2, buf, protocol.BlockSizeBulk, true)
}

// GetEntropy fills buf with post-processed entropy bytes, health-tested as
// they arrive.
func (f *ApiFacade) GetEntropy(buf []byte) error {
	return f.bulk(protocol.CommandEntropy, buf, protocol.BlockSizeBulk, true)
}

// GetNoise fills buf with raw, unconditioned noise bytes, health-tested as
// they arrive.
func (f *ApiFacade) GetNoise(buf []byte) error {
	return f.bulk(protocol.CommandNoise, buf, protocol.BlockSizeBulk, true)
}

// GetTestData fills buf with the device's self-test byte sequence
// (0,1,2,... mod 256); health tests do not run over this stream.
func (f *ApiFacade) GetTestData(buf []byte) error {
	return f.bulk(protocol.CommandTestData, buf, protocol.BlockSizeTestData, false)
}

func (f *ApiFacade) bulk(cmdType protocol.CommandType, buf []byte, blockSize int, testData bool) error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	if err := f.engine.GetBulk(cmdType, buf, blockSize, testData); err != nil {
		return f.fail(err)
	}
	return f.ok()
}

// RunHealthTest asks the device to run its own self-test and succeeds iff
// it reports a healthy status.
func (f *ApiFacade) RunHealthTest() error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	resp, err := f.engine.ExecuteCommand(protocol.CommandHealthTest, nil, 1)
	if err != nil {
		return f.fail(err)
	}
	if resp.Payload[0] != 0 {
		return f.fail(errs.Wrapf(errs.KindHealthTest, nil, "device self-test failed with status %d", resp.Payload[0]))
	}
	return f.ok()
}

// RetrieveFrequencyTables fetches the device's per-source byte-frequency
// histograms.
func (f *ApiFacade) RetrieveFrequencyTables() (*protocol.FrequencyTables, error) {
	if err := f.requireConnected(); err != nil {
		return nil, f.fail(err)
	}
	resp, err := f.engine.ExecuteCommand(protocol.CommandFrequencyTables, nil, protocol.FrequencyTablesSize+1)
	if err != nil {
		return nil, f.fail(err)
	}
	status := protocol.DeviceRngStatus(resp.Payload[protocol.FrequencyTablesSize])
	if !status.IsHealthy() {
		return nil, f.fail(errs.Wrapf(errs.KindHealthTest, nil, "device reported rng status %s", status))
	}
	tables, err := protocol.DecodeFrequencyTables(resp.Payload)
	if err != nil {
		return nil, f.fail(err)
	}
	f.ok()
	return tables, nil
}

// RetrieveRngStatus fetches the device's current health status byte.
func (f *ApiFacade) RetrieveRngStatus() (protocol.DeviceRngStatus, error) {
	if err := f.requireConnected(); err != nil {
		return 0, f.fail(err)
	}
	resp, err := f.engine.ExecuteCommand(protocol.CommandDeviceHealthStatus, nil, 1)
	if err != nil {
		return 0, f.fail(err)
	}
	f.ok()
	return protocol.DeviceRngStatus(resp.Payload[0]), nil
}

// RetrieveDeviceID returns the identifier string captured at Connect time.
func (f *ApiFacade) RetrieveDeviceID() (string, error) {
	if err := f.requireConnected(); err != nil {
		return "", f.fail(err)
	}
	return f.info.IdentifierString(), f.ok()
}

// RetrieveDeviceModel returns the model string captured at Connect time.
func (f *ApiFacade) RetrieveDeviceModel() (string, error) {
	if err := f.requireConnected(); err != nil {
		return "", f.fail(err)
	}
	return f.info.ModelString(), f.ok()
}

// RetrieveMajorVersion returns the device's major firmware version.
func (f *ApiFacade) RetrieveMajorVersion() (byte, error) {
	if err := f.requireConnected(); err != nil {
		return 0, f.fail(err)
	}
	return f.info.MajorVersion, f.ok()
}

// RetrieveMinorVersion returns the device's minor firmware version.
func (f *ApiFacade) RetrieveMinorVersion() (byte, error) {
	if err := f.requireConnected(); err != nil {
		return 0, f.fail(err)
	}
	return f.info.MinorVersion, f.ok()
}

// SetSessionTTL configures how long a session is used before the facade
// forces a rekey; zero disables TTL-based rekey.
func (f *ApiFacade) SetSessionTTL(ttl time.Duration) error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	f.cfg.SessionTTL = ttl
	f.engine.SetTTL(ttl)
	return f.ok()
}

// DisableStatTests turns off the host-side RCT/APT health tests.
func (f *ApiFacade) DisableStatTests() error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	f.engine.HealthTests().SetEnabled(false)
	return f.ok()
}

// EnableStatTests turns the host-side RCT/APT health tests back on.
func (f *ApiFacade) EnableStatTests() error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	f.engine.HealthTests().SetEnabled(true)
	return f.ok()
}

// SetNumFailuresThreshold configures the RCT/APT failure threshold; n must
// be at least healthtest.MinFailureThreshold.
func (f *ApiFacade) SetNumFailuresThreshold(n uint16) error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	if err := f.engine.HealthTests().SetFailureThreshold(n); err != nil {
		return f.fail(err)
	}
	return f.ok()
}

// noiseBulkSource adapts the engine's bulk reads to the capability
// interfaces: noise reads for extractor.NoiseSource, entropy reads for
// rangeseq.EntropySource.
type noiseBulkSource struct {
	engine *engine.Engine
}

func (s noiseBulkSource) GetNoise(dest []byte) error {
	return s.engine.GetBulk(protocol.CommandNoise, dest, protocol.BlockSizeBulk, true)
}

func (s noiseBulkSource) GetEntropy(dest []byte) error {
	return s.engine.GetBulk(protocol.CommandEntropy, dest, protocol.BlockSizeBulk, true)
}

// ExtractSha256Entropy fills buf with SHA-256-conditioned entropy.
func (f *ApiFacade) ExtractSha256Entropy(buf []byte) error {
	return f.extract(buf, extractor.SHA256)
}

// ExtractSha512Entropy fills buf with SHA-512-conditioned entropy.
func (f *ApiFacade) ExtractSha512Entropy(buf []byte) error {
	return f.extract(buf, extractor.SHA512)
}

func (f *ApiFacade) extract(buf []byte, hash extractor.HashChoice) error {
	if err := f.requireConnected(); err != nil {
		return f.fail(err)
	}
	ext, err := extractor.New(noiseBulkSource{engine: f.engine}, hash, 2)
	if err != nil {
		return f.fail(err)
	}
	if err := ext.Extract(buf); err != nil {
		return f.fail(err)
	}
	return f.ok()
}

// RandomRange draws size distinct values from [min,max] using device
// entropy.
func (f *ApiFacade) RandomRange(min, max int64, size int) ([]int64, error) {
	if err := f.requireConnected(); err != nil {
		return nil, f.fail(err)
	}
	seq, err := rangeseq.New(noiseBulkSource{engine: f.engine}, min, max)
	if err != nil {
		return nil, f.fail(err)
	}
	out, err := seq.Generate(size)
	if err != nil {
		return nil, f.fail(err)
	}
	return out, f.ok()
}

// fillFunc is the shape every bulk-read method on ApiFacade shares, used
// to drive the generic file-sink helper below.
type fillFunc func(buf []byte) error

func (f *ApiFacade) toFile(path string, numBytes int64, fill fillFunc) error {
	out, err := os.Create(path)
	if err != nil {
		return f.fail(errs.Wrap(errs.KindInternal, err, "create output file"))
	}
	defer out.Close()

	w := bufio.NewWriterSize(out, fileChunkSize)
	buf := make([]byte, fileChunkSize)

	var written int64
	continuous := numBytes == 0
	for continuous || written < numBytes {
		n := int64(fileChunkSize)
		if !continuous {
			if remaining := numBytes - written; remaining < n {
				n = remaining
			}
		}
		if err := fill(buf[:n]); err != nil {
			w.Flush()
			return f.fail(err)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return f.fail(errs.Wrap(errs.KindInternal, err, "write output file"))
		}
		written += n
	}
	if err := w.Flush(); err != nil {
		return f.fail(errs.Wrap(errs.KindInternal, err, "flush output file"))
	}
	return f.ok()
}

// EntropyToFile streams GetEntropy output to path in fileChunkSize-byte
// writes; numBytes == 0 means write continuously until an I/O error.
func (f *ApiFacade) EntropyToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.GetEntropy)
}

// NoiseToFile streams GetNoise output to path.
func (f *ApiFacade) NoiseToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.GetNoise)
}

// NoiseSource1ToFile streams GetNoiseSource1 output to path.
func (f *ApiFacade) NoiseSource1ToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.GetNoiseSource1)
}

// NoiseSource2ToFile streams GetNoiseSource2 output to path.
func (f *ApiFacade) NoiseSource2ToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.GetNoiseSource2)
}

// ExtractSha256EntropyToFile streams SHA-256-conditioned entropy to path.
func (f *ApiFacade) ExtractSha256EntropyToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.ExtractSha256Entropy)
}

// ExtractSha512EntropyToFile streams SHA-512-conditioned entropy to path.
func (f *ApiFacade) ExtractSha512EntropyToFile(path string, numBytes int64) error {
	return f.toFile(path, numBytes, f.ExtractSha512Entropy)
}
