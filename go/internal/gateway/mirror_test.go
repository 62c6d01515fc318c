package gateway

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attach registers a socketless connection so frames can be read off its send buffer
func attach(cm *ConnectionManager, channel Channel, buffer int) *Connection {
	conn := &Connection{
		ID:      string(channel) + "-client",
		Channel: channel,
		Send:    make(chan []byte, buffer),
		Manager: cm,
	}
	cm.registerConnection(conn)
	return conn
}

func drain(conn *Connection) []string {
	var frames []string
	for {
		select {
		case frame := <-conn.Send:
			frames = append(frames, string(frame))
		default:
			return frames
		}
	}
}

func TestLocalMirrorForwardsOnce(t *testing.T) {
	mirror := NewLocalMirror()
	tls := NewConnectionManager("tls", DefaultConnectionConfig(), nil, mirror)
	plain := NewConnectionManager("plain", DefaultConnectionConfig(), nil, mirror)

	onTLS := attach(tls, ChannelUISignals, 4)
	onPlain := attach(plain, ChannelUISignals, 4)
	debugOnPlain := attach(plain, ChannelDebug, 4)

	require.NoError(t, tls.Publish(ChannelUISignals, map[string]int{"n": 1}))

	assert.Equal(t, []string{`{"n":1}`}, drain(onTLS))
	assert.Equal(t, []string{`{"n":1}`}, drain(onPlain))
	assert.Empty(t, drain(debugOnPlain))
}

func TestPublishExceptSkipsSender(t *testing.T) {
	mirror := NewLocalMirror()
	cm := NewConnectionManager("tls", DefaultConnectionConfig(), nil, mirror)
	other := NewConnectionManager("plain", DefaultConnectionConfig(), nil, mirror)

	sender := attach(cm, ChannelUISignals, 4)
	peer := attach(cm, ChannelUISignals, 4)
	remote := attach(other, ChannelUISignals, 4)

	require.NoError(t, cm.PublishExcept(ChannelUISignals, json.RawMessage(`{"type":"sync"}`), sender))

	assert.Empty(t, drain(sender))
	assert.Len(t, drain(peer), 1)
	assert.Len(t, drain(remote), 1)
}

func TestFullBufferSkipsOnlyThatConnection(t *testing.T) {
	cm := NewConnectionManager("tls", DefaultConnectionConfig(), nil, nil)

	slow := attach(cm, ChannelDebug, 1)
	fast := attach(cm, ChannelDebug, 4)

	require.NoError(t, cm.Publish(ChannelDebug, 1))
	require.NoError(t, cm.Publish(ChannelDebug, 2))

	assert.Equal(t, []string{"1"}, drain(slow))
	assert.Equal(t, []string{"1", "2"}, drain(fast))
}

func TestClosedConnectionIsSkipped(t *testing.T) {
	cm := NewConnectionManager("tls", DefaultConnectionConfig(), nil, nil)

	gone := attach(cm, ChannelDebug, 4)
	live := attach(cm, ChannelDebug, 4)
	gone.closeSend()

	assert.Equal(t, 1, cm.deliver(ChannelDebug, []byte("1"), nil))
	assert.Equal(t, []string{"1"}, drain(live))

	// closing twice is harmless
	gone.closeSend()
}

func TestConnectionStats(t *testing.T) {
	cm := NewConnectionManager("plain", DefaultConnectionConfig(), nil, nil)
	attach(cm, ChannelDebug, 1)
	attach(cm, ChannelDebug, 1)
	ui := attach(cm, ChannelUISignals, 1)

	stats := cm.GetConnectionStats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 2, stats.ChannelConnections[string(ChannelDebug)])

	cm.unregisterConnection(ui)
	stats = cm.GetConnectionStats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.NotContains(t, stats.ChannelConnections, string(ChannelUISignals))
}

func newOfflineNATSMirror(instanceID string) *NATSMirror {
	return &NATSMirror{
		local:      NewLocalMirror(),
		instanceID: instanceID,
		config:     DefaultNATSMirrorConfig(),
	}
}

func TestNATSMirrorDeliversRemoteFrames(t *testing.T) {
	mirror := newOfflineNATSMirror("self")
	cm := NewConnectionManager("plain", DefaultConnectionConfig(), nil, mirror)
	ui := attach(cm, ChannelUISignals, 4)

	data, err := json.Marshal(mirroredFrame{
		Origin:  "other",
		Channel: ChannelUISignals,
		Frame:   json.RawMessage(`{"type":"punch"}`),
	})
	require.NoError(t, err)

	mirror.handleMessage(&nats.Msg{Subject: "punchdeck.ws.ui-signals", Data: data})
	assert.Equal(t, []string{`{"type":"punch"}`}, drain(ui))
}

func TestNATSMirrorIgnoresOwnFrames(t *testing.T) {
	mirror := newOfflineNATSMirror("self")
	cm := NewConnectionManager("plain", DefaultConnectionConfig(), nil, mirror)
	ui := attach(cm, ChannelUISignals, 4)

	data, err := json.Marshal(mirroredFrame{
		Origin:  "self",
		Channel: ChannelUISignals,
		Frame:   json.RawMessage(`{"type":"punch"}`),
	})
	require.NoError(t, err)

	mirror.handleMessage(&nats.Msg{Subject: "punchdeck.ws.ui-signals", Data: data})
	mirror.handleMessage(&nats.Msg{Subject: "punchdeck.ws.ui-signals", Data: []byte("garbage")})
	assert.Empty(t, drain(ui))
}

func TestNATSMirrorForwardsLocallyWithoutConnection(t *testing.T) {
	mirror := newOfflineNATSMirror("self")
	tls := NewConnectionManager("tls", DefaultConnectionConfig(), nil, mirror)
	plain := NewConnectionManager("plain", DefaultConnectionConfig(), nil, mirror)
	debug := attach(plain, ChannelDebug, 4)

	require.NoError(t, tls.Publish(ChannelDebug, map[string]string{"type": "system"}))
	assert.Equal(t, []string{`{"type":"system"}`}, drain(debug))
}

func TestNATSMirrorSubject(t *testing.T) {
	mirror := newOfflineNATSMirror("self")
	assert.Equal(t, "punchdeck.ws.data-input", mirror.subject(ChannelDataInput))
	assert.Equal(t, "punchdeck.ws.debug", mirror.subject(ChannelDebug))
}
