package alpharng

import (
	"time"

	"go.uber.org/zap"

	"github.com/tectrolabs-go/alpharng/internal/logging"
	"github.com/tectrolabs-go/alpharng/protocol"
)

// Config carries every user-facing knob for a device connection: the
// negotiated cipher/MAC strength, which RSA key wraps the session, an
// optional alternate PEM key file, the session TTL, and a logger.
type Config struct {
	KeySize    protocol.KeySize
	MacType    protocol.MacType
	RsaKeySize protocol.RsaKeySize

	// AltPemFile, if set, is loaded as the RSA public key instead of the
	// embedded key, and selects the pkAltRSA2048 handshake path.
	AltPemFile string

	// SessionTTL is how long a session is used before the facade forces a
	// rekey; zero disables TTL-based rekey.
	SessionTTL time.Duration

	// Logger receives structured diagnostic events; if nil, a logfmt logger
	// is built from Debug.
	Logger *zap.Logger

	// Debug raises the default logger (when Logger is nil) to debug level.
	Debug bool
}

// DefaultConfig returns the full-strength configuration: AES-256-GCM,
// HMAC-SHA-256, 2048-bit RSA.
func DefaultConfig() Config {
	return Config{
		KeySize:    protocol.Key256,
		MacType:    protocol.MacHmacSha256,
		RsaKeySize: protocol.Rsa2048,
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.New(logging.Config{Debug: c.Debug})
}
