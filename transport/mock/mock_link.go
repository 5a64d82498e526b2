// Package mock provides a ring-buffered fake transport.Link for exercising
// session, engine and facade code without a real USB device attached.
package mock

import (
	"sync"
	"time"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

const ringCapacity = 256

// Link is an in-memory transport.Link: writes are recorded to TxLog and
// reads are served from a queue filled by InjectRx, mirroring the teacher's
// driver/stub.Driver ring-buffer pattern generalized from fixed radio frames
// to arbitrary byte chunks. Reads/writes happen from the engine's goroutine
// while TxLog/InjectRx are driven from the test's goroutine, so all state is
// guarded by mu.
type Link struct {
	mu sync.Mutex

	rx ringBuffer
	tx ringBuffer

	path   string
	closed bool
}

// New constructs an empty mock link for the given logical path.
func New(path string) *Link {
	return &Link{path: path}
}

// Write queues data onto the transmit log.
func (l *Link) Write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errs.New(errs.KindTransport, "write on closed mock link")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	l.tx.push(frame)
	return nil
}

// Read pops the next injected chunk, or waits up to timeout for one to
// appear before returning a timeout error.
func (l *Link) Read(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, errs.New(errs.KindTransport, "read on closed mock link")
		}
		if frame, ok := l.rx.pop(); ok {
			l.mu.Unlock()
			out := make([]byte, len(frame))
			copy(out, frame)
			return out, nil
		}
		l.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, errs.Wrap(errs.KindTimeout, nil, "mock link read timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

// Close marks the link unusable; safe to call multiple times.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Path returns the logical device path this mock stands in for.
func (l *Link) Path() string { return l.path }

// InjectRx queues data to be returned by a future Read call.
func (l *Link) InjectRx(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	l.rx.push(frame)
}

// TxLog returns the chunks written so far, oldest first; only the most
// recent ringCapacity chunks are kept.
func (l *Link) TxLog() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tx.snapshot()
}

type ringBuffer struct {
	data       [ringCapacity][]byte
	head, tail int
	count      int
}

func (rb *ringBuffer) push(frame []byte) {
	if rb.count == ringCapacity {
		rb.data[rb.tail] = nil
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = frame
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() ([]byte, bool) {
	if rb.count == 0 {
		return nil, false
	}
	frame := rb.data[rb.head]
	rb.data[rb.head] = nil
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return frame, true
}

func (rb *ringBuffer) snapshot() [][]byte {
	out := make([][]byte, rb.count)
	i := rb.head
	for idx := 0; idx < rb.count; idx++ {
		p := rb.data[i]
		cp := make([]byte, len(p))
		copy(cp, p)
		out[idx] = cp
		i = (i + 1) % ringCapacity
	}
	return out
}
