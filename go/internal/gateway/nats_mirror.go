package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSMirrorConfig holds configuration for mirroring frames across processes
type NATSMirrorConfig struct {
	URL           string
	SubjectPrefix string // frames go to <prefix>.ws.<channel>
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSMirrorConfig returns default NATS mirror configuration
func DefaultNATSMirrorConfig() NATSMirrorConfig {
	return NATSMirrorConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "punchdeck",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// mirroredFrame is the payload published on NATS
type mirroredFrame struct {
	Origin  string          `json:"origin"`
	Channel Channel         `json:"channel"`
	Frame   json.RawMessage `json:"frame"`
}

// NATSMirror links listeners in this process like LocalMirror and additionally exchanges
// frames with other processes over core NATS
type NATSMirror struct {
	local      *LocalMirror
	nc         *nats.Conn
	sub        *nats.Subscription
	instanceID string
	config     NATSMirrorConfig
}

// NewNATSMirror connects to NATS and subscribes to frames from other instances
func NewNATSMirror(config NATSMirrorConfig) (*NATSMirror, error) {
	opts := []nats.Option{
		nats.Name("punchdeck-hub"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	m := &NATSMirror{
		local:      NewLocalMirror(),
		nc:         nc,
		instanceID: uuid.New().String(),
		config:     config,
	}

	sub, err := nc.Subscribe(config.SubjectPrefix+".>", m.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to mirrored frames: %w", err)
	}
	m.sub = sub

	log.Info().
		Str("url", config.URL).
		Str("subject", config.SubjectPrefix+".>").
		Str("instance_id", m.instanceID).
		Msg("NATS mirror connected")

	return m, nil
}

// Join adds a listener of this process
func (m *NATSMirror) Join(cm *ConnectionManager) {
	m.local.Join(cm)
}

// Forward delivers frame to the other local listeners and publishes it for other instances
func (m *NATSMirror) Forward(origin *ConnectionManager, channel Channel, frame []byte) {
	m.local.Forward(origin, channel, frame)

	if m.nc == nil {
		return
	}

	data, err := json.Marshal(mirroredFrame{
		Origin:  m.instanceID,
		Channel: channel,
		Frame:   frame,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal mirrored frame")
		return
	}

	if err := m.nc.Publish(m.subject(channel), data); err != nil {
		log.Error().
			Err(err).
			Str("channel", string(channel)).
			Msg("failed to publish mirrored frame")
	}
}

// handleMessage delivers a frame published by another instance to every local listener
func (m *NATSMirror) handleMessage(msg *nats.Msg) {
	var mf mirroredFrame
	if err := json.Unmarshal(msg.Data, &mf); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject).
			Msg("failed to unmarshal mirrored frame")
		return
	}

	// our own publications come back through the wildcard subscription
	if mf.Origin == m.instanceID {
		return
	}

	for _, member := range m.local.Members() {
		member.deliver(mf.Channel, mf.Frame, nil)
	}
}

// subject maps "/ws/debug" to "<prefix>.ws.debug"
func (m *NATSMirror) subject(channel Channel) string {
	token := strings.ReplaceAll(strings.Trim(string(channel), "/"), "/", ".")
	return m.config.SubjectPrefix + "." + token
}

// Connected reports whether the NATS connection is up
func (m *NATSMirror) Connected() bool {
	return m.nc != nil && m.nc.IsConnected()
}

// Close unsubscribes and drains the NATS connection
func (m *NATSMirror) Close() error {
	if m.sub != nil {
		if err := m.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe NATS mirror")
		}
	}
	if m.nc != nil {
		if err := m.nc.Drain(); err != nil {
			return fmt.Errorf("drain NATS connection: %w", err)
		}
	}
	return nil
}
