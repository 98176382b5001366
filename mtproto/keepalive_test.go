package mtproto_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MUTLCC/TeleDoge/mtproto"
	"github.com/MUTLCC/TeleDoge/mtproto/session"
	"github.com/MUTLCC/TeleDoge/mtproto/transporttest"
)

// SendPing transmits a content-related ping and blocks for its matching
// pong.
func TestSendPingRoundTrip(t *testing.T) {
	sess := newTestSession(t)
	tr := transporttest.New()
	coord := mtproto.NewCoordinator(tr, sess, session.NoopStore{}, mtproto.Logger{})

	done := make(chan error, 1)
	go func() { done <- coord.SendPing(time.Second) }()

	require.Eventually(t, func() bool { return len(tr.Outbound()) >= 1 }, time.Second, time.Millisecond)
	_, pingMsgID, _ := decryptClientEnvelope(t, sess, tr.Outbound()[0])
	tr.PushInbound(buildServerEnvelope(t, sess, 8001, 2, buildPong(0, pingMsgID)))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SendPing did not complete after its pong arrived")
	}
}

// The keep-alive loop re-pings on its own schedule once a prior ping's
// pong has landed, without any foreground caller driving it.
func TestKeepAliveLoopPingsOnSchedule(t *testing.T) {
	sess := newTestSession(t)
	tr := transporttest.New()
	coord := mtproto.NewCoordinator(tr, sess, session.NoopStore{},
		mtproto.Logger{}, mtproto.WithPingInterval(20*time.Millisecond))
	coord.SetupPingThread()
	defer coord.StopKeepAlive()

	require.Eventually(t, func() bool { return len(tr.Outbound()) >= 1 }, 2*time.Second, time.Millisecond)
	_, firstPingID, _ := decryptClientEnvelope(t, sess, tr.Outbound()[0])
	tr.PushInbound(buildServerEnvelope(t, sess, 9001, 2, buildPong(0, firstPingID)))

	require.Eventually(t, func() bool { return len(tr.Outbound()) >= 2 }, 3*time.Second, time.Millisecond)
	_, secondPingID, _ := decryptClientEnvelope(t, sess, tr.Outbound()[1])
	require.NotEqual(t, firstPingID, secondPingID)
}

// StopKeepAlive is idempotent and safe to call before SetupPingThread
// ever ran, and again after the loop has already stopped.
func TestStopKeepAliveIdempotent(t *testing.T) {
	sess := newTestSession(t)
	tr := transporttest.New()
	coord := mtproto.NewCoordinator(tr, sess, session.NoopStore{}, mtproto.Logger{})

	coord.StopKeepAlive() // never started
	coord.SetupPingThread()
	coord.StopKeepAlive()
	coord.StopKeepAlive() // already stopped
}
