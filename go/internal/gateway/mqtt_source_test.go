package gateway

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/punchdeck/go/internal/punch"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTSourceKeepsPipelinePerTopic(t *testing.T) {
	store := punch.NewStore(punch.DefaultConfig())
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	sink := &recordingSink{}

	var created []string
	source := newMQTTSource(DefaultMQTTSourceConfig(), func(topic string) *Pipeline {
		created = append(created, topic)
		return NewPipeline(topic, store, nil, clock, sink)
	})

	strong := []byte(`{"type":"acceleration","acceleration":{"x":30,"y":0,"z":0},"timestamp":1}`)
	source.handleMessage(nil, fakeMessage{topic: "punchdeck/sensors/left", payload: strong})
	source.handleMessage(nil, fakeMessage{topic: "punchdeck/sensors/right", payload: strong})
	source.handleMessage(nil, fakeMessage{topic: "punchdeck/sensors/left", payload: strong})
	source.handleMessage(nil, fakeMessage{topic: "punchdeck/sensors/left", payload: []byte("{")})

	assert.Equal(t, []string{"punchdeck/sensors/left", "punchdeck/sensors/right"}, created)
	require.Len(t, sink.punches, 2, "each topic has its own cooldown")
	assert.Len(t, sink.samples, 3)
}

func TestMQTTSourceGeneratesClientID(t *testing.T) {
	source := newMQTTSource(DefaultMQTTSourceConfig(), nil)
	assert.Contains(t, source.config.ClientID, "punchdeck-hub-")

	cfg := DefaultMQTTSourceConfig()
	cfg.ClientID = "fixed"
	assert.Equal(t, "fixed", newMQTTSource(cfg, nil).config.ClientID)
}
