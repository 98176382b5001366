// Package transport defines the duplex byte-stream interface the
// session sender consumes, and a concrete abridged-framing TCP
// implementation. The sender never talks to a net.Conn directly —
// everything it needs is this interface, so tests can substitute
// mtproto/transporttest's in-memory double.
package transport

import (
	"time"

	"github.com/ansel1/merry/v2"
)

// ErrReadCancelled is returned by Receive when another goroutine calls
// CancelReceive while a read is in flight.
var ErrReadCancelled = merry.New("transport: read cancelled")

// ErrTimeout is returned by Receive when the caller-supplied timeout
// elapses with no frame available.
var ErrTimeout = merry.New("transport: read timed out")

// Transport is the byte-level duplex connection to one data center.
// Implementations must make Receive safely cancellable from another
// goroutine without losing or corrupting any bytes already read off the
// wire.
type Transport interface {
	Connect() error
	Close() error
	Send(frame []byte) error
	// Receive blocks for one complete frame or until timeout elapses.
	// A zero timeout means wait indefinitely.
	Receive(timeout time.Duration) (frame []byte, err error)
	// CancelReceive unblocks a concurrent Receive call with
	// ErrReadCancelled. It is a no-op if no Receive is in flight.
	CancelReceive()
}
