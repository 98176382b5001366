package mtproto

import (
	"math/rand"
	"time"

	"github.com/ansel1/merry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MUTLCC/TeleDoge/mtproto/transport"
)

// updatesReceiveTimeout is a conservative window for the background
// loop's poll-for-updates receive.
const updatesReceiveTimeout = time.Minute

// pingReceiveTimeout bounds the keep-alive loop's own ping/pong round
// trip. The liveness probe waits updatesReceiveTimeout instead.
const pingReceiveTimeout = 5 * time.Second

// SetupPingThread starts the background keep-alive/updates loop if it
// isn't already running. A single goroutine is supervised with
// golang.org/x/sync/errgroup for error propagation; the loop is stopped
// through the c.stop channel, not through the group.
func (c *Coordinator) SetupPingThread() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.stop = make(chan struct{})
	c.lastPing = time.Now()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)

		var g errgroup.Group
		g.Go(c.keepAliveLoop)
		if err := g.Wait(); err != nil {
			c.log.Error(err, "keep-alive loop stopped")
		}
	}()
}

// StopKeepAlive signals the background loop to exit and waits for it,
// cancelling an in-flight updates receive so shutdown doesn't block on
// it. A ping or liveness-probe receive in flight is not cancelled and
// runs to its own timeout.
func (c *Coordinator) StopKeepAlive() {
	if !c.running.Load() {
		return
	}
	close(c.stop)
	if c.updatesThreadReceiving.Load() {
		c.transport.CancelReceive()
	}
	c.wg.Wait()
}

// keepAliveLoop runs one iteration per tick until stopped or a fatal error occurs.
func (c *Coordinator) keepAliveLoop() error {
	for {
		if c.stopped() {
			return nil
		}

		c.sleepBetweenTicks()

		if c.stopped() {
			return nil
		}

		// Step 2: don't contend with a foreground caller that's
		// already waiting on the transport.
		if c.waitingReceive.Load() {
			continue
		}

		stop, err := c.keepAliveTick()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

func (c *Coordinator) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// sleepBetweenTicks applies a pending FLOOD_WAIT_-driven sleep first,
// consuming it once; otherwise the loop relaxes for 100ms when updates
// are expected, 1s when it's only pinging.
func (c *Coordinator) sleepBetweenTicks() {
	if secs := c.updatesThreadSleep.Swap(0); secs > 0 {
		c.sleepInterruptibly(time.Duration(secs) * time.Second)
		return
	}
	if c.updates.hasHandlers() {
		c.sleepInterruptibly(100 * time.Millisecond)
	} else {
		c.sleepInterruptibly(time.Second)
	}
}

func (c *Coordinator) sleepInterruptibly(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.stop:
	}
}

// keepAliveTick is steps 3-7: acquire the mutex, ping if due, then poll
// for one update if any handler is registered.
func (c *Coordinator) keepAliveTick() (stop bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastPing) >= c.pingInterval {
		ping := NewPingRequest(rand.Int63())
		if sendErr := c.sendLocked(ping); sendErr != nil {
			return c.classifyLoopError(sendErr)
		}
		if recvErr := c.receiveLocked(ping, pingReceiveTimeout, nil); recvErr != nil {
			return c.classifyLoopError(recvErr)
		}
		c.lastPing = time.Now()
	}

	if !c.updates.hasHandlers() {
		return false, nil
	}

	c.updatesThreadReceiving.Store(true)
	var updates []Update
	recvErr := c.receiveLocked(nil, updatesReceiveTimeout, &updates)
	c.updatesThreadReceiving.Store(false)

	switch {
	case recvErr == nil:
		return false, nil

	case merry.Is(recvErr, transport.ErrReadCancelled):
		// A foreground send() cancelled us; not an error.
		return false, nil

	case merry.Is(recvErr, transport.ErrTimeout):
		return c.handleUpdatesTimeout()

	default:
		return c.classifyLoopError(recvErr)
	}
}

// handleUpdatesTimeout probes liveness once, reconnects and retries
// once more on a second timeout, then lets any further failure be
// fatal to the loop. The concrete probe request is supplied by the
// caller via WithLivenessProbe, since building a real GetState request
// needs a TL catalog this module doesn't carry.
func (c *Coordinator) handleUpdatesTimeout() (bool, error) {
	c.log.Debug("updates receive timed out, sending liveness probe")
	probe := c.livenessProbe()
	if err := c.sendLocked(probe); err != nil {
		return c.classifyLoopError(err)
	}
	err := c.receiveLocked(probe, updatesReceiveTimeout, nil)
	if err == nil {
		return false, nil
	}
	if !merry.Is(err, transport.ErrTimeout) {
		return c.classifyLoopError(err)
	}

	c.log.Warn("liveness probe timed out, reconnecting")
	if err := c.reconnectTransportLocked(); err != nil {
		return false, merry.Wrap(err)
	}

	retryProbe := c.livenessProbe()
	if err := c.sendLocked(retryProbe); err != nil {
		return c.classifyLoopError(err)
	}
	if err := c.receiveLocked(retryProbe, updatesReceiveTimeout, nil); err != nil {
		// Further failure beyond the single retry is fatal.
		return false, merry.Wrap(err)
	}
	return false, nil
}

// reconnectTransportLocked reopens the transport without touching the
// loop's own running/stop bookkeeping, since the caller is the loop
// goroutine itself — calling the public Reconnect/Disconnect here would
// have it wait on its own completion.
func (c *Coordinator) reconnectTransportLocked() error {
	if err := c.transport.Close(); err != nil {
		c.log.Warn("error closing transport before reconnect: %v", err)
	}
	return c.transport.Connect()
}

// classifyLoopError stops the loop quietly if a logout is in progress;
// otherwise the error is fatal to the loop.
func (c *Coordinator) classifyLoopError(err error) (bool, error) {
	if c.loggingOut.Load() {
		c.log.Info("keep-alive loop stopping quietly during logout: %v", err)
		return true, nil
	}
	return false, err
}
