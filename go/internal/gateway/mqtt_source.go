package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MQTTSourceConfig holds configuration for the MQTT sensor source
type MQTTSourceConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

// DefaultMQTTSourceConfig returns default MQTT source configuration
func DefaultMQTTSourceConfig() MQTTSourceConfig {
	return MQTTSourceConfig{
		Broker:         "tcp://localhost:1883",
		Topic:          "punchdeck/sensors/#",
		QoS:            0,
		ConnectTimeout: 10 * time.Second,
	}
}

// MQTTSource feeds sensor samples published over MQTT into the hub. Every topic is an
// independent sensor stream with its own pipeline.
type MQTTSource struct {
	config      MQTTSourceConfig
	newPipeline func(source string) *Pipeline
	client      mqtt.Client

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewMQTTSource creates an MQTT source feeding s
func NewMQTTSource(config MQTTSourceConfig, s *Service) *MQTTSource {
	return newMQTTSource(config, func(source string) *Pipeline {
		return NewPipeline(source, s.store, s.normalizer, s.clock, s)
	})
}

func newMQTTSource(config MQTTSourceConfig, newPipeline func(source string) *Pipeline) *MQTTSource {
	if config.ClientID == "" {
		config.ClientID = "punchdeck-hub-" + uuid.New().String()[:8]
	}
	return &MQTTSource{
		config:      config,
		newPipeline: newPipeline,
		pipelines:   make(map[string]*Pipeline),
	}
}

// Start connects to the broker. Subscriptions are renewed on every reconnect.
func (m *MQTTSource) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.config.Broker)
	opts.SetClientID(m.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.config.ConnectTimeout)
	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Error().Err(err).Str("broker", m.config.Broker).Msg("MQTT connection lost")
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(m.config.ConnectTimeout) {
		return fmt.Errorf("connect to MQTT broker %s: timed out", m.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", m.config.Broker, err)
	}

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return nil
}

func (m *MQTTSource) onConnect(client mqtt.Client) {
	token := client.Subscribe(m.config.Topic, m.config.QoS, m.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", m.config.Topic).Msg("failed to subscribe to sensor topic")
		return
	}
	log.Info().
		Str("broker", m.config.Broker).
		Str("topic", m.config.Topic).
		Msg("subscribed to MQTT sensor topic")
}

// handleMessage runs one sample through the pipeline of its topic
func (m *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pipeline, exists := m.pipelines[msg.Topic()]
	if !exists {
		pipeline = m.newPipeline(msg.Topic())
		m.pipelines[msg.Topic()] = pipeline
	}

	if err := pipeline.Process(msg.Payload()); err != nil {
		log.Warn().
			Err(err).
			Str("topic", msg.Topic()).
			Msg("dropping invalid sensor sample")
	}
}

// Connected reports whether the broker connection is up
func (m *MQTTSource) Connected() bool {
	return m.client != nil && m.client.IsConnected()
}

// Stop disconnects from the broker
func (m *MQTTSource) Stop() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		log.Info().Str("broker", m.config.Broker).Msg("MQTT source disconnected")
	}
}
