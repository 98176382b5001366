// Package transporttest provides an in-memory transport.Transport double
// for exercising the session coordinator and dispatcher deterministically,
// without a real TCP connection to a data center. Grounded on the
// transport test-double pattern used elsewhere in the retrieval pack for
// driving protocol state machines under test.
package transporttest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MUTLCC/TeleDoge/mtproto/transport"
)

// Fake is a scriptable transport.Transport: tests push frames with
// PushInbound and assert on what was written with Outbound.
type Fake struct {
	inbound chan []byte
	cancel  chan struct{}

	receiving atomic.Bool

	mu       sync.Mutex
	outbound [][]byte
	closed   bool
}

func New() *Fake {
	return &Fake{
		inbound: make(chan []byte, 64),
		cancel:  make(chan struct{}, 1),
	}
}

func (f *Fake) Connect() error { return nil }

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// PushInbound queues a frame for the next Receive call to return.
func (f *Fake) PushInbound(frame []byte) {
	f.inbound <- frame
}

// Outbound returns a snapshot of every frame handed to Send, in order.
func (f *Fake) Outbound() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.outbound))
	copy(out, f.outbound)
	return out
}

func (f *Fake) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.outbound = append(f.outbound, cp)
	return nil
}

func (f *Fake) Receive(timeout time.Duration) ([]byte, error) {
	f.receiving.Store(true)
	defer f.receiving.Store(false)

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.cancel:
		return nil, transport.ErrReadCancelled
	case <-timeoutCh:
		return nil, transport.ErrTimeout
	}
}

// CancelReceive unblocks an in-flight Receive, if any, with
// ErrReadCancelled. A no-op otherwise.
func (f *Fake) CancelReceive() {
	if !f.receiving.Load() {
		return
	}
	select {
	case f.cancel <- struct{}{}:
	default:
	}
}
