package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ansel1/merry/v2"
	"golang.org/x/net/proxy"
)

// TCPConfig configures a TCP connection to one MTProto data center.
type TCPConfig struct {
	Addr string
	// Proxy, if non-nil, is used to dial Addr instead of the default
	// direct net.Dialer — a SOCKS5 proxy.Dialer.
	Proxy proxy.Dialer
}

// TCP implements Transport over abridged-mode MTProto framing: after the
// single 0xef handshake byte, every frame is a length prefix (1 byte for
// frames under 508 bytes, else 0x7f + a 3-byte little-endian length/4)
// followed by the payload.
type TCP struct {
	cfg  TCPConfig
	conn net.Conn

	mu         sync.Mutex
	cancelled  atomic.Bool
	inFlight   atomic.Bool
}

func NewTCP(cfg TCPConfig) *TCP {
	return &TCP{cfg: cfg}
}

func (t *TCP) Connect() error {
	dialer := t.cfg.Proxy
	var conn net.Conn
	var err error
	if dialer != nil {
		conn, err = dialer.Dial("tcp", t.cfg.Addr)
	} else {
		conn, err = net.Dial("tcp", t.cfg.Addr)
	}
	if err != nil {
		return merry.Wrap(err)
	}
	if _, err := conn.Write([]byte{0xef}); err != nil {
		conn.Close()
		return merry.Wrap(err)
	}
	t.conn = conn
	return nil
}

func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	return merry.Wrap(t.conn.Close())
}

func (t *TCP) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := encodeAbridgedLength(len(frame))
	if _, err := t.conn.Write(header); err != nil {
		return merry.Wrap(err)
	}
	if _, err := t.conn.Write(frame); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

func (t *TCP) Receive(timeout time.Duration) ([]byte, error) {
	t.inFlight.Store(true)
	defer t.inFlight.Store(false)

	if timeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}
	defer t.conn.SetReadDeadline(time.Time{})

	length, err := readAbridgedLength(t.conn)
	if err != nil {
		return nil, t.classifyReadErr(err)
	}
	frame := make([]byte, length)
	if _, err := readFull(t.conn, frame); err != nil {
		return nil, t.classifyReadErr(err)
	}
	return frame, nil
}

func (t *TCP) classifyReadErr(err error) error {
	if t.cancelled.CompareAndSwap(true, false) {
		return merry.Wrap(ErrReadCancelled)
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return merry.Wrap(ErrTimeout)
	}
	return merry.Wrap(err)
}

// CancelReceive unblocks an in-flight Receive by forcing the read
// deadline into the past. The next error that read produces is then
// classified as ErrReadCancelled rather than ErrTimeout.
func (t *TCP) CancelReceive() {
	if !t.inFlight.Load() {
		return
	}
	t.cancelled.Store(true)
	t.conn.SetReadDeadline(time.Now().Add(-time.Second))
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func encodeAbridgedLength(n int) []byte {
	words := n / 4
	if words < 0x7f {
		return []byte{byte(words)}
	}
	return []byte{0x7f, byte(words), byte(words >> 8), byte(words >> 16)}
}

func readAbridgedLength(conn net.Conn) (int, error) {
	var first [1]byte
	if _, err := readFull(conn, first[:]); err != nil {
		return 0, err
	}
	if first[0] < 0x7f {
		return int(first[0]) * 4, nil
	}
	var rest [3]byte
	if _, err := readFull(conn, rest[:]); err != nil {
		return 0, err
	}
	words := int(rest[0]) | int(rest[1])<<8 | int(rest[2])<<16
	return words * 4, nil
}
