package mtproto

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ansel1/merry/v2"

	"github.com/MUTLCC/TeleDoge/mtproto/session"
	"github.com/MUTLCC/TeleDoge/mtproto/transport"
	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// defaultPingInterval is the default keep-alive ping cadence.
const defaultPingInterval = 60 * time.Second

// Coordinator is the session coordinator: it owns the transport and
// session for its lifetime, serializes every send/receive under a
// single mutex, and runs an optional background keep-alive/updates
// loop that cooperatively yields the transport to foreground callers.
//
// A reentrant mutex would let a bad-salt fault handler call send()
// from inside receive(), but sync.Mutex isn't reentrant, so dispatch
// hands back a "resend" action instead, performed after the mutex
// section that triggered it ends.
type Coordinator struct {
	mu sync.Mutex

	transport transport.Transport
	session   *session.Session
	store     session.Store
	log       Logger

	acks    ackBuffer
	updates *updateRegistry

	// waitingReceive and updatesThreadReceiving are the two one-bit
	// signals coordinating foreground and background access to the
	// transport: the former tells the background loop not to start a
	// new receive, the latter tells a foreground send() it must cancel
	// the loop's in-flight receive.
	waitingReceive         atomic.Bool
	updatesThreadReceiving atomic.Bool
	// updatesThreadSleep is seconds the keep-alive loop should sleep on
	// its next tick, set by a FLOOD_WAIT_ classification. Kept as an
	// atomic cell here rather than a package-level variable.
	updatesThreadSleep atomic.Int64
	loggingOut         atomic.Bool

	// lastFault is set by dispatch handlers and consumed by receive()
	// once the mutex-held loop ends; only ever touched while mu is held.
	lastFault error

	pingInterval  time.Duration
	lastPing      time.Time
	livenessProbe func() Request

	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithPingInterval overrides the default 60s keep-alive ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.pingInterval = d }
}

// WithLivenessProbe supplies the request the keep-alive loop sends when
// a receive times out, in place of a concrete GetState call — building
// a GetState request needs a TL catalog this module doesn't carry.
// Defaults to NewPingRequest with a random id.
func WithLivenessProbe(probe func() Request) Option {
	return func(c *Coordinator) { c.livenessProbe = probe }
}

// NewCoordinator builds a Coordinator around an already-connected
// transport collaborator, a negotiated session, and a session store.
func NewCoordinator(tr transport.Transport, sess *session.Session, store session.Store, log Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:    tr,
		session:      sess,
		store:        store,
		log:          log,
		updates:      newUpdateRegistry(),
		pingInterval: defaultPingInterval,
	}
	c.livenessProbe = func() Request { return NewPingRequest(rand.Int63()) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the transport. Acquiring the auth key and performing
// the DH handshake are out of scope; the caller hands this Coordinator
// an already-negotiated session.
func (c *Coordinator) Connect() error {
	c.log.Info("connecting, session id %d", c.session.ID)
	if err := c.transport.Connect(); err != nil {
		return merry.Wrap(err)
	}
	c.log.Info("connected")
	return nil
}

// Disconnect stops the keep-alive loop (if running) and closes the
// transport.
func (c *Coordinator) Disconnect() error {
	c.StopKeepAlive()
	if err := c.transport.Close(); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

// Reconnect closes and reopens the transport, then restarts the
// keep-alive loop if it was running. This is a single retry, not a
// broader reconnection policy.
func (c *Coordinator) Reconnect() error {
	wasRunning := c.running.Load()
	c.log.Info("reconnecting")
	if err := c.Disconnect(); err != nil {
		c.log.Warn("error closing transport during reconnect: %v", err)
	}
	if err := c.Connect(); err != nil {
		return merry.Wrap(err)
	}
	if wasRunning {
		c.SetupPingThread()
	}
	return nil
}

// Send transmits req:
//  1. cancel the background loop's receive if it's in flight,
//  2. acquire the mutex,
//  3. mark waitingReceive so the background loop won't start a new one,
//  4. flush pending acks ahead of the request,
//  5. transmit the request,
//  6. persist the session.
//
// waitingReceive stays set past Send's own return: it guards the gap
// between this call and the matching Receive call for req, so the
// background loop can't steal req's rpc_result out from under it with
// its own updates-only receive in between. It's cleared at the end of
// receiveLocked, not here.
func (c *Coordinator) Send(req Request) error {
	if c.updatesThreadReceiving.Load() {
		c.transport.CancelReceive()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.waitingReceive.Store(true)

	return c.sendLocked(req)
}

// sendLocked is Send's body factored out so handleBadServerSalt's
// resend action (performed by receive() right after its dispatch call
// returns) can reuse it without re-acquiring c.mu.
func (c *Coordinator) sendLocked(req Request) error {
	if n := c.acks.len(); n > 0 {
		if err := c.sendAcksLocked(); err != nil {
			return err
		}
	}

	req.SetMsgID(c.session.NextMsgID())
	seq := c.session.NextSequence(req.ContentRelated())
	envelope, err := encryptEnvelope(c.session, req.MsgID(), seq, req.Body())
	if err != nil {
		return merry.Wrap(err)
	}
	if err := c.transport.Send(envelope); err != nil {
		return merry.Wrap(err)
	}
	if err := c.store.Save(c.session); err != nil {
		c.log.Error(err, "saving session after send")
	}
	return nil
}

func (c *Coordinator) sendAcksLocked() error {
	ids := c.acks.drain()
	w := wire.NewWriter(8 + 8*len(ids))
	w.UInt(wire.CRCMsgsAck)
	w.VectorLong(ids)

	msgID := c.session.NextMsgID()
	seq := c.session.NextSequence(false)
	envelope, err := encryptEnvelope(c.session, msgID, seq, w.Bytes())
	if err != nil {
		return merry.Wrap(err)
	}
	return c.transport.Send(envelope)
}

// Receive blocks on req and/or updates. At least one of req and updates
// must be non-nil. It loops decrypting
// and dispatching inbound envelopes until req's confirm_received latch
// is set (if req is non-nil) or updates has at least one element (if
// req is nil), returning any fault the dispatcher recorded along the way.
func (c *Coordinator) Receive(req Request, timeout time.Duration, updates *[]Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked(req, timeout, updates)
}

func (c *Coordinator) receiveLocked(req Request, timeout time.Duration, updates *[]Update) error {
	defer c.waitingReceive.Store(false)
	for {
		envelope, err := c.transport.Receive(timeout)
		if err != nil {
			return merry.Wrap(err)
		}

		decoded, err := decryptEnvelope(c.session, envelope)
		if err != nil {
			return merry.Wrap(err)
		}

		c.lastFault = nil
		result := c.dispatch(wire.NewReader(decoded.Body), decoded.RemoteMsgID, decoded.RemoteSeqNo, req)

		if len(result.updates) > 0 {
			if updates != nil {
				*updates = append(*updates, result.updates...)
			}
			for _, u := range result.updates {
				c.updates.dispatch(u)
			}
		}

		if result.resend != nil {
			// The bad-salt handler's resend, performed here instead of
			// recursively inside dispatch: sync.Mutex isn't reentrant,
			// so the resend happens after dispatch returns, still
			// under this same receive's lock hold.
			if err := c.sendLocked(result.resend); err != nil {
				return merry.Wrap(err)
			}
		}

		if c.lastFault != nil {
			return c.lastFault
		}

		if req == nil && updates != nil && len(*updates) > 0 {
			return nil
		}
		if req != nil && req.ConfirmReceived() {
			return nil
		}
		// Neither exit condition is met yet; loop for the next envelope.
		// A bad-salt resend falls through here too — the retransmitted
		// request's reply arrives on a later iteration of this same
		// loop.
	}
}

// SendPing composes and transmits a content-related ping, then blocks
// for its pong.
func (c *Coordinator) SendPing(timeout time.Duration) error {
	req := NewPingRequest(rand.Int63())
	if err := c.Send(req); err != nil {
		return err
	}
	return c.Receive(req, timeout, nil)
}

// AddUpdateHandler registers fn to be called for every inbound object
// whose tag the dispatcher doesn't handle itself (see Update). Returns a
// token for later removal with RemoveUpdateHandler.
func (c *Coordinator) AddUpdateHandler(fn UpdateHandler) UpdateHandlerToken {
	return c.updates.add(fn)
}

// RemoveUpdateHandler unregisters a handler previously added with
// AddUpdateHandler.
func (c *Coordinator) RemoveUpdateHandler(token UpdateHandlerToken) {
	c.updates.remove(token)
}

// ReceiveUpdate blocks until at least one update is pushed, or timeout
// elapses, and returns it. It's a thin wrapper over
// Receive(nil, timeout, &updates) for callers that only
// want the next single update rather than registering a standing handler.
func (c *Coordinator) ReceiveUpdate(timeout time.Duration) (Update, error) {
	var updates []Update
	if err := c.Receive(nil, timeout, &updates); err != nil {
		return Update{}, err
	}
	return updates[0], nil
}

// SetLoggingOut toggles whether an incoming msgs_ack alone is enough to
// complete a pending request's ConfirmReceived latch.
func (c *Coordinator) SetLoggingOut(v bool) {
	c.loggingOut.Store(v)
}
