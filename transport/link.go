// Package transport defines the byte-stream abstraction the session and
// engine layers use to talk to an AlphaRNG device, independent of whether
// the concrete link is a USB CDC/ACM serial port or a test double.
package transport

import "time"

// Link is the interface a concrete transport implements: raw byte writes
// and reads with a caller-supplied timeout, plus lifecycle and enumeration
// hooks. It plays the same role the teacher's RadioDriver interface plays
// for the nRF52 radio, generalized from fixed-size frames to arbitrary byte
// runs since the USB serial link has no native framing.
type Link interface {
	// Write sends data over the link and returns once all of it is queued
	// for transmission.
	Write(data []byte) error
	// Read waits up to timeout for at least one byte and returns whatever
	// is available, never blocking past the deadline.
	Read(timeout time.Duration) ([]byte, error)
	// Close releases the underlying resource (file descriptor, lock).
	Close() error
	// Path reports the device path this link was opened against, for
	// logging and error messages.
	Path() string
}

// Enumerator discovers candidate device paths without opening them.
type Enumerator interface {
	// Enumerate returns the device paths recognized as AlphaRNG units.
	Enumerate() ([]string, error)
}
