//go:build linux

// Package serial implements transport.Link over a USB CDC/ACM serial port on
// Linux, putting the line discipline into raw mode and taking an exclusive
// advisory lock on the device node for the life of the link.
package serial

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tectrolabs-go/alpharng/internal/errs"
	"github.com/tectrolabs-go/alpharng/transport"
)

// byIDGlob matches the udev-maintained stable symlinks TectroLabs ships a
// rule for; see spec §6.
const byIDGlob = "/dev/serial/by-id/*TectroLabs_Alpha_RNG*"

// Link is a transport.Link backed by an open USB CDC/ACM tty device.
type Link struct {
	file *os.File
	path string
}

var _ transport.Link = (*Link)(nil)

// Open configures the tty at path into raw, non-canonical mode with the
// given read timeout and takes an exclusive flock on the node so a second
// process cannot open the same device concurrently.
func Open(path string, timeout time.Duration) (*Link, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransport, err, "open %s", path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errs.Wrapf(errs.KindTransport, err, "lock %s: device busy", path)
	}

	if err := setRawMode(f.Fd(), timeout); err != nil {
		f.Close()
		return nil, err
	}

	return &Link{file: f, path: path}, nil
}

func setRawMode(fd uintptr, timeout time.Duration) error {
	t, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "get termios")
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD

	vtime := int(timeout.Milliseconds() / 100)
	if vtime < 1 {
		vtime = 1
	}
	if vtime > 255 {
		vtime = 255
	}
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = uint8(vtime)

	if err := unix.IoctlSetTermios(int(fd), unix.TCSETS, t); err != nil {
		return errs.Wrap(errs.KindTransport, err, "set termios")
	}
	return nil
}

// Write sends data over the serial port.
func (l *Link) Write(data []byte) error {
	_, err := l.file.Write(data)
	if err != nil {
		return errs.Wrapf(errs.KindTransport, err, "write %s", l.path)
	}
	return nil
}

// Read blocks per VTIME/VMIN semantics configured at Open time; the timeout
// parameter is accepted for interface symmetry with other Link
// implementations but the effective deadline is the one baked into the tty
// settings, consistent with how the device expects polling to behave.
func (l *Link) Read(timeout time.Duration) ([]byte, error) {
	buf := make([]byte, 16384)
	n, err := l.file.Read(buf)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransport, err, "read %s", l.path)
	}
	if n == 0 {
		return nil, errs.Wrap(errs.KindTimeout, nil, "serial read timed out")
	}
	return buf[:n], nil
}

// Close releases the flock and closes the device node.
func (l *Link) Close() error {
	return l.file.Close()
}

// Path returns the tty path this link was opened against.
func (l *Link) Path() string { return l.path }

// LinuxEnumerator discovers AlphaRNG devices via the udev by-id symlink
// tree.
type LinuxEnumerator struct{}

var _ transport.Enumerator = LinuxEnumerator{}

// Enumerate globs /dev/serial/by-id for the TectroLabs udev rule and
// resolves each match to its underlying ttyACM* device node.
func (LinuxEnumerator) Enumerate() ([]string, error) {
	matches, err := filepath.Glob(byIDGlob)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "glob by-id symlinks")
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		resolved, err := filepath.EvalSymlinks(m)
		if err != nil {
			continue
		}
		paths = append(paths, resolved)
	}
	return paths, nil
}
