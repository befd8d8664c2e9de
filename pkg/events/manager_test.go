package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishWithNoSubscribersStillBuffersForReplay(t *testing.T) {
	m := NewConnectionManager(time.Second)
	ch := RequestChannel("req-1")

	m.Publish(ch, NewToken(1, "hello"))

	m.replayMu.Lock()
	buf := m.replay[ch]
	m.replayMu.Unlock()

	assert.Len(t, buf, 1)
	assert.Equal(t, "hello", buf[0].Content)
}

func TestReplayBufferIsBoundedAndKeepsMostRecent(t *testing.T) {
	m := NewConnectionManager(time.Second)
	ch := RequestChannel("req-1")

	for i := 0; i < replayBufferSize+50; i++ {
		m.Publish(ch, NewToken(i, "tok"))
	}

	m.replayMu.Lock()
	buf := m.replay[ch]
	m.replayMu.Unlock()

	assert.Len(t, buf, replayBufferSize)
	assert.Equal(t, replayBufferSize+49, buf[len(buf)-1].Seq, "buffer should retain the most recent events")
}

func TestSubscribeUnsubscribeTracksChannelMembership(t *testing.T) {
	m := NewConnectionManager(time.Second)
	c := &Connection{ID: "conn-1", subscriptions: map[string]bool{}}
	ch := RequestChannel("req-1")

	m.subscribe(c, ch)
	m.channelMu.RLock()
	_, subscribed := m.channels[ch][c.ID]
	m.channelMu.RUnlock()
	assert.True(t, subscribed)
	assert.True(t, c.subscriptions[ch])

	m.unsubscribe(c, ch)
	m.channelMu.RLock()
	_, stillExists := m.channels[ch]
	m.channelMu.RUnlock()
	assert.False(t, stillExists, "channel entry should be removed once its last subscriber leaves")
	assert.False(t, c.subscriptions[ch])
}

func TestActiveConnectionsReflectsRegisteredConnections(t *testing.T) {
	m := NewConnectionManager(time.Second)
	assert.Equal(t, 0, m.ActiveConnections())

	c := &Connection{ID: "conn-1", subscriptions: map[string]bool{}}
	m.registerConnection(c)
	assert.Equal(t, 1, m.ActiveConnections())

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()
	assert.Equal(t, 0, m.ActiveConnections())
}

func TestStreamEventIsTerminal(t *testing.T) {
	assert.True(t, NewComplete(5, 100, 250).IsTerminal())
	assert.False(t, NewToken(1, "x").IsTerminal())
	assert.False(t, NewRouting(0, "Hub", 0.9, "reasoning").IsTerminal())
}

func TestRequestChannelFormat(t *testing.T) {
	assert.Equal(t, "request:abc-123", RequestChannel("abc-123"))
}
