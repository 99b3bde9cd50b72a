package server

import (
	"testing"

	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedBroadcasts struct {
	msgs []*ServerMessage
	ok   bool
}

func (c *capturedBroadcasts) broadcast(msg *ServerMessage) bool {
	c.msgs = append(c.msgs, msg)
	return c.ok
}

func TestPresenceTracker_SetOnline_SetOffline(t *testing.T) {
	captured := &capturedBroadcasts{ok: true}
	p := NewPresenceTracker(testutil.TestLogger(t), captured.broadcast)

	state := p.SetOnline(testSeeker, "conn-1")
	assert.True(t, state.Online)
	assert.Equal(t, "conn-1", state.ConnectionId)
	assert.True(t, p.IsOnline(testSeeker.Id, testSeeker.Kind))
	assert.False(t, p.IsOnline(testSeeker.Id, types.AccountCompany), "ids are scoped by account kind")

	p.SetOnline(testSeeker, "conn-2")

	state, ok := p.SetOffline("conn-1")
	require.True(t, ok)
	assert.True(t, state.Online, "account stays online while another connection is live")

	state, ok = p.SetOffline("conn-2")
	require.True(t, ok)
	assert.False(t, state.Online)
	assert.False(t, p.IsOnline(testSeeker.Id, testSeeker.Kind))

	require.Len(t, captured.msgs, 4)
	for _, msg := range captured.msgs {
		assert.NotNil(t, msg.UserStatus, "every change is broadcast as userStatus")
		assert.True(t, msg.Recipient.isZero(), "presence goes to every connection")
	}
}

func TestPresenceTracker_SetOffline_unknown(t *testing.T) {
	captured := &capturedBroadcasts{ok: true}
	p := NewPresenceTracker(testutil.TestLogger(t), captured.broadcast)

	_, ok := p.SetOffline("never-online")
	assert.False(t, ok)
	assert.Empty(t, captured.msgs, "unknown connections are ignored silently")
}

func TestPresenceTracker_rebind(t *testing.T) {
	p := NewPresenceTracker(testutil.TestLogger(t), nil)

	p.SetOnline(testSeeker, "conn-1")
	p.SetOnline(testCompany, "conn-1")

	assert.False(t, p.IsOnline(testSeeker.Id, testSeeker.Kind))
	assert.True(t, p.IsOnline(testCompany.Id, testCompany.Kind))
	assert.Len(t, p.accounts, 1)
}

func TestPresenceTracker_droppedBroadcast(t *testing.T) {
	captured := &capturedBroadcasts{ok: false}
	p := NewPresenceTracker(testutil.TestLogger(t), captured.broadcast)

	state := p.SetOnline(testCompany, "conn-1")
	assert.True(t, state.Online, "a failed broadcast does not fail the update")
	assert.True(t, p.IsOnline(testCompany.Id, testCompany.Kind))
}
