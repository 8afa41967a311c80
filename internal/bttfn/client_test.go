package bttfn

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) (*Client, *FakeTransport) {
	t.Helper()
	tr := &FakeTransport{}
	return NewClient(tr, "flux", logger.Wrap(zaptest.NewLogger(t))), tr
}

func sendTimes(t *testing.T, tr *FakeTransport) []time.Time {
	t.Helper()
	var out []time.Time
	for _, p := range tr.Sent() {
		f, err := Parse(p[:])
		require.NoError(t, err)
		out = append(out, time.UnixMilli(int64(f.ID)))
	}
	return out
}

func TestClient_FirstPollSends(t *testing.T) {
	c, tr := newTestClient(t)
	c.Poll(t0, true)
	require.Len(t, tr.Sent(), 1)
	assert.True(t, c.Pending())
	assert.Equal(t, UnsetParams, c.Params())
}

func TestClient_NoLinkNoSend(t *testing.T) {
	c, tr := newTestClient(t)
	for i := 0; i < 3000; i++ {
		c.Poll(t0.Add(time.Duration(i)*time.Millisecond), false)
	}
	assert.Empty(t, tr.Sent())

	now := t0.Add(3 * time.Second)
	c.Poll(now, true)
	assert.Len(t, tr.Sent(), 1, "link coming up must send at once")
}

func TestClient_Cadence(t *testing.T) {
	c, tr := newTestClient(t)
	now := time.UnixMilli(1_000_000)
	c.Poll(now, true)
	for i := 0; i < 5; i++ {
		id, ok := tr.LastID()
		require.True(t, ok)
		tr.Inject(EncodeResponse(id, maskSpeed, 10, 0))
		now = now.Add(time.Millisecond)
		c.Poll(now, true)
		require.False(t, c.Pending())
		assert.Equal(t, PollInterval, c.NextDelay())
		for !c.Pending() {
			now = now.Add(time.Millisecond)
			c.Poll(now, true)
		}
	}
	ts := sendTimes(t, tr)
	require.Len(t, ts, 6)
	for i := 1; i < len(ts); i++ {
		assert.Equal(t, PollInterval+time.Millisecond, ts[i].Sub(ts[i-1]), "gap %d", i)
	}
}

func TestClient_BackoffShape(t *testing.T) {
	c, tr := newTestClient(t)
	now := time.UnixMilli(5_000_000)

	// 15 timeouts produce 15 retries after the first request.
	for i := 0; len(tr.Sent()) < 16; i++ {
		require.Less(t, i, 60_000, "client stopped sending")
		c.Poll(now, true)
		now = now.Add(time.Millisecond)
	}
	assert.Equal(t, uint64(15), c.Stats().Timeouts)

	ts := sendTimes(t, tr)
	for i := 1; i < len(ts); i++ {
		gap := ts[i].Sub(ts[i-1])
		if i <= FastRetries {
			assert.Equal(t, ResponseTimeout+time.Millisecond, gap, "retry %d should follow the timeout at once", i)
		} else {
			assert.Equal(t, PollInterval+time.Millisecond, gap, "retry %d should use the normal cadence", i)
		}
	}
	assert.Equal(t, FastRetries, c.Failures())
	assert.Equal(t, PollInterval, c.NextDelay())
}

func TestClient_ResponseUpdatesParams(t *testing.T) {
	c, tr := newTestClient(t)
	c.Poll(t0, true)
	id, _ := tr.LastID()

	tr.Inject(EncodeResponse(id, maskSpeed|maskStatus, 42, flagNight))
	c.Poll(t0.Add(10*time.Millisecond), true)
	assert.Equal(t, Params{Speed: 42, Night: FlagOn, PowerOff: FlagOff}, c.Params())
	assert.Zero(t, c.Failures())
}

func TestClient_AbsentFieldsRevert(t *testing.T) {
	c, tr := newTestClient(t)
	now := t0
	c.Poll(now, true)
	id, _ := tr.LastID()
	tr.Inject(EncodeResponse(id, maskSpeed|maskStatus, 42, flagPowerOff))
	now = now.Add(10 * time.Millisecond)
	c.Poll(now, true)
	require.True(t, c.Params().PowerOff.On())

	now = now.Add(PollInterval + time.Millisecond)
	c.Poll(now, true)
	require.True(t, c.Pending())
	id, _ = tr.LastID()
	tr.Inject(EncodeResponse(id, maskSpeed, 12, 0))
	c.Poll(now.Add(time.Millisecond), true)

	assert.Equal(t, 12, c.Params().Speed)
	assert.Equal(t, FlagUnset, c.Params().Night)
	assert.Equal(t, FlagUnset, c.Params().PowerOff)
}

func TestClient_TimeoutsRevertParams(t *testing.T) {
	c, tr := newTestClient(t)
	now := t0
	c.Poll(now, true)
	id, _ := tr.LastID()
	tr.Inject(EncodeResponse(id, maskSpeed|maskStatus, 30, flagNight))
	now = now.Add(time.Millisecond)
	c.Poll(now, true)
	require.Equal(t, 30, c.Params().Speed)

	for c.Stats().Timeouts < FastRetries-1 {
		now = now.Add(time.Millisecond)
		c.Poll(now, true)
	}
	assert.Equal(t, 30, c.Params().Speed, "params kept while fast retries remain")

	for c.Stats().Timeouts < FastRetries {
		now = now.Add(time.Millisecond)
		c.Poll(now, true)
	}
	assert.Equal(t, UnsetParams, c.Params())
}

func TestClient_IgnoresStaleResponse(t *testing.T) {
	c, tr := newTestClient(t)
	c.Poll(t0, true)
	id, _ := tr.LastID()

	tr.Inject(EncodeResponse(id+1, maskSpeed, 55, 0))
	c.Poll(t0.Add(time.Millisecond), true)
	assert.True(t, c.Pending())
	assert.Equal(t, SpeedUnset, c.Params().Speed)
	assert.Equal(t, uint64(1), c.Stats().Dropped)
}

func TestClient_DropsGarbage(t *testing.T) {
	c, tr := newTestClient(t)
	bad := EncodeNotification(NoticeStart)
	bad[30] ^= 0x04
	tr.Inject(bad)
	tr.InjectRaw([]byte("BTTF"))

	notes := c.Poll(t0, true)
	assert.Empty(t, notes)
	assert.Equal(t, uint64(2), c.Stats().Dropped)
}

func TestClient_Notifications(t *testing.T) {
	c, tr := newTestClient(t)
	tr.Inject(EncodeNotification(NoticePrepare))
	tr.Inject(EncodeNotification(NoticeStart))
	tr.Inject(EncodeNotification(NoticeAlarm))

	notes := c.Poll(t0, false)
	assert.Equal(t, []Notice{NoticePrepare, NoticeStart, NoticeAlarm}, notes)
}

func TestClient_SendError(t *testing.T) {
	c, tr := newTestClient(t)
	tr.SendErr = errors.New("network unreachable")
	c.Poll(t0, true)
	assert.False(t, c.Pending())
	assert.Zero(t, c.Stats().Sent)

	tr.SendErr = nil
	c.Poll(t0.Add(PollInterval), true)
	assert.Empty(t, tr.Sent())
	c.Poll(t0.Add(PollInterval+time.Millisecond), true)
	assert.Len(t, tr.Sent(), 1)
}

func TestLinkWatcher_Caches(t *testing.T) {
	w := &LinkWatcher{Every: time.Second}
	first := w.Up(t0)
	w.up = !first
	assert.Equal(t, !first, w.Up(t0.Add(500*time.Millisecond)))
}

func TestFakeTransport_Respond(t *testing.T) {
	c, tr := newTestClient(t)
	assert.False(t, tr.Respond(10, false, false))

	c.Poll(t0, true)
	require.True(t, tr.Respond(SpeedUnset, true, true))
	c.Poll(t0.Add(time.Millisecond), true)
	assert.Equal(t, Params{Speed: SpeedUnset, Night: FlagOn, PowerOff: FlagOn}, c.Params())
}
