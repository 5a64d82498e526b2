//go:build !linux

package serial

import (
	"time"

	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/transport"
)

// Link is a stub on non-Linux platforms; the termios-based raw mode setup
// is Linux-specific and macOS/Windows support is documented in the
// specification but not implemented here.
type Link struct{}

var _ transport.Link = (*Link)(nil)

// Open always fails on unsupported platforms.
func Open(path string, timeout time.Duration) (*Link, error) {
	return nil, errs.New(errs.KindTransport, "serial transport is only implemented for linux")
}

func (l *Link) Write(data []byte) error                { return errs.New(errs.KindTransport, "unsupported platform") }
func (l *Link) Read(timeout time.Duration) ([]byte, error) {
	return nil, errs.New(errs.KindTransport, "unsupported platform")
}
func (l *Link) Close() error { return nil }
func (l *Link) Path() string { return "" }

// LinuxEnumerator is unavailable on non-Linux platforms.
type LinuxEnumerator struct{}

var _ transport.Enumerator = LinuxEnumerator{}

// Enumerate always returns an empty list on unsupported platforms.
func (LinuxEnumerator) Enumerate() ([]string, error) {
	return nil, errs.New(errs.KindTransport, "device enumeration is only implemented for linux")
}
