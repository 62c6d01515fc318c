package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/punch"
	"github.com/mcdev12/punchdeck/go/internal/sensor"
	"github.com/mcdev12/punchdeck/go/internal/synccounter"
)

// Service is the punch hub: it owns the listeners, classifies sensor input and fans
// events out to display and debug clients
type Service struct {
	config Config

	store      *punch.Store
	counter    *synccounter.Counter
	normalizer sensor.Normalizer
	clock      clockwork.Clock

	mirror       Mirror
	natsMirror   *NATSMirror
	mqttSource   *MQTTSource
	stateHandler *StateHandler

	// publishMu orders counter mutations with the broadcasts that carry them
	publishMu sync.Mutex

	managersMu sync.RWMutex
	managers   []*ConnectionManager

	orientationMu   sync.Mutex
	lastOrientation *sensor.Orientation

	// guarded by publishMu
	punchesEmitted uint64
	lastPunchAt    time.Time
}

// Config holds configuration for the hub service
type Config struct {
	ConnectionConfig ConnectionConfig

	// NATS enables cross-process mirroring when set
	NATS *NATSMirrorConfig
	// MQTT enables the MQTT sensor source when set
	MQTT *MQTTSourceConfig

	ImagesDir       string
	StaticDir       string
	PunchConfigPath string

	// Punch is the starting tuning before PunchConfigPath is applied
	Punch punch.Config
	// SyncCounterStart fixes the counter start; nil picks a random one
	SyncCounterStart *int64

	Clock clockwork.Clock
}

// DefaultConfig returns default configuration for the hub
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ImagesDir:        "public/archive",
		Punch:            punch.DefaultConfig(),
	}
}

// NewService creates the hub service
func NewService(config Config) (*Service, error) {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	counter := synccounter.NewRandom()
	if config.SyncCounterStart != nil {
		counter = synccounter.New(*config.SyncCounterStart)
	}

	s := &Service{
		config:     config,
		store:      punch.NewStore(config.Punch),
		counter:    counter,
		normalizer: sensor.NewQuaternionNormalizer(),
		clock:      config.Clock,
	}

	if config.PunchConfigPath != "" {
		if _, err := s.store.LoadFile(config.PunchConfigPath); err != nil {
			return nil, fmt.Errorf("failed to load punch config: %w", err)
		}
	}

	if config.NATS != nil {
		natsMirror, err := NewNATSMirror(*config.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS mirror: %w", err)
		}
		s.natsMirror = natsMirror
		s.mirror = natsMirror
	} else {
		s.mirror = NewLocalMirror()
	}

	if config.MQTT != nil {
		s.mqttSource = NewMQTTSource(*config.MQTT, s)
	}

	s.stateHandler = NewStateHandler(s.store, s.counter, config.ImagesDir)

	// every committed tuning change is announced to debug clients
	s.store.OnChange(func(cfg punch.Config, version uint64) {
		s.broadcast(ChannelDebug, SystemMessage{
			Type:        MessageTypeSystem,
			Message:     "Punch configuration updated",
			PunchConfig: &cfg,
		})
	})

	return s, nil
}

// Store returns the live punch configuration
func (s *Service) Store() *punch.Store {
	return s.store
}

// Counter returns the sync counter
func (s *Service) Counter() *synccounter.Counter {
	return s.counter
}

// NewListener creates the connection manager for one listener and links it to the others
func (s *Service) NewListener(name string) *ConnectionManager {
	cm := NewConnectionManager(name, s.config.ConnectionConfig, s, s.mirror)

	s.managersMu.Lock()
	s.managers = append(s.managers, cm)
	s.managersMu.Unlock()

	return cm
}

// Start runs the background sources until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting punch hub service")

	if s.config.PunchConfigPath != "" {
		go func() {
			if err := s.store.Watch(ctx, s.config.PunchConfigPath); err != nil {
				log.Error().Err(err).Msg("punch config watcher failed")
			}
		}()
	}

	if s.mqttSource != nil {
		if err := s.mqttSource.Start(ctx); err != nil {
			log.Error().Err(err).Msg("MQTT source failed to start")
		}
	}

	// Wait for context cancellation
	<-ctx.Done()

	log.Info().Msg("punch hub service shutting down")
	return s.Stop()
}

// Stop closes every connection and external source
func (s *Service) Stop() error {
	if s.mqttSource != nil {
		s.mqttSource.Stop()
	}

	if s.natsMirror != nil {
		if err := s.natsMirror.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS mirror")
		}
	}

	for _, cm := range s.listeners() {
		cm.CloseAll()
	}

	log.Info().Msg("punch hub service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket routes of cm and the shared HTTP API
func (s *Service) RegisterRoutes(mux *http.ServeMux, cm *ConnectionManager) {
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	mux.HandleFunc("/ws/stats", s.handleStats)
	mux.HandleFunc("/health", HealthHandler(s))
	mux.HandleFunc("/metrics", MetricsHandler(s))
	s.stateHandler.RegisterStateRoutes(mux)
	if s.config.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
	log.Info().Str("listener", cm.Name).Msg("punch hub routes registered")
}

// Stats summarizes every listener
type Stats struct {
	Service     string            `json:"service"`
	SyncCounter int64             `json:"syncCounter"`
	Listeners   []ConnectionStats `json:"listeners"`
}

// GetStats returns statistics about the hub
func (s *Service) GetStats() Stats {
	stats := Stats{
		Service:     "punch_hub",
		SyncCounter: s.counter.Current(),
	}
	for _, cm := range s.listeners() {
		stats.Listeners = append(stats.Listeners, cm.GetConnectionStats())
	}
	return stats
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetStats())
}

func (s *Service) listeners() []*ConnectionManager {
	s.managersMu.RLock()
	defer s.managersMu.RUnlock()
	return append([]*ConnectionManager(nil), s.managers...)
}

// broadcast publishes through the first listener; the mirror reaches the rest
func (s *Service) broadcast(channel Channel, msg any) {
	managers := s.listeners()
	if len(managers) == 0 {
		return
	}
	if err := managers[0].Publish(channel, msg); err != nil {
		log.Error().Err(err).Str("channel", string(channel)).Msg("failed to broadcast message")
	}
}

// OnConnect sends the channel handshake
func (s *Service) OnConnect(c *Connection) {
	switch c.Channel {
	case ChannelDataInput:
		c.pipeline = NewPipeline(c.ID, s.store, s.normalizer, s.clock, s)

	case ChannelUISignals:
		// queued under publishMu so a concurrent punch cannot land before an older value
		s.publishMu.Lock()
		s.sendTo(c, NewSyncCounterMessage(s.counter.Current()))
		s.publishMu.Unlock()

	case ChannelDebug:
		s.publishMu.Lock()
		s.sendTo(c, s.configNotice("Current punch configuration"))
		s.publishMu.Unlock()
	}
}

// OnMessage routes an inbound frame by channel
func (s *Service) OnMessage(c *Connection, message []byte) {
	switch c.Channel {
	case ChannelDataInput:
		if c.pipeline == nil {
			return
		}
		if err := c.pipeline.Process(message); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("dropping invalid sensor sample")
		}

	case ChannelUISignals:
		s.relaySync(c, message)

	case ChannelDebug:
		s.handleControl(c, message)
	}
}

// OnDisconnect logs the end of a session. Classifier state dies with the connection.
func (s *Service) OnDisconnect(c *Connection) {
	log.Debug().
		Str("connection_id", c.ID).
		Str("channel", string(c.Channel)).
		Dur("session", time.Since(c.ConnectedAt)).
		Msg("client disconnected")
}

// relaySync forwards a display's sync message to every other display
func (s *Service) relaySync(c *Connection, message []byte) {
	msgType, err := peekType(message)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed ui-signals message")
		return
	}
	if msgType != MessageTypeSync {
		log.Debug().Str("connection_id", c.ID).Str("type", string(msgType)).Msg("ignoring ui-signals message")
		return
	}

	if err := c.Manager.PublishExcept(ChannelUISignals, json.RawMessage(message), c); err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to relay sync message")
	}
}

func (s *Service) sendTo(c *Connection, msg any) {
	if err := c.Manager.SendTo(c, msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("failed to send message")
	}
}

func (s *Service) configNotice(message string) SystemMessage {
	cfg := s.store.Snapshot()
	counter := s.counter.Current()
	return SystemMessage{
		Type:        MessageTypeSystem,
		Message:     message,
		PunchConfig: &cfg,
		SyncCounter: &counter,
	}
}

func (s *Service) observeOrientation(o sensor.Orientation) {
	s.orientationMu.Lock()
	defer s.orientationMu.Unlock()
	s.lastOrientation = &o
}

func (s *Service) latestOrientation() *sensor.Orientation {
	s.orientationMu.Lock()
	defer s.orientationMu.Unlock()
	return s.lastOrientation
}

// publishSample mirrors every validated sample to debug clients
func (s *Service) publishSample(sample sensor.Sample) {
	s.broadcast(ChannelDebug, sample)
}

// emitPunch stamps the event with a fresh counter value and broadcasts it
func (s *Service) emitPunch(event punch.Event) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	value := s.counter.Increment()
	event.SyncCounter = &value
	s.punchesEmitted++
	s.lastPunchAt = s.clock.Now()

	s.broadcast(ChannelUISignals, event)
	s.broadcast(ChannelDebug, event)

	log.Info().
		Str("classification", string(event.Classification)).
		Float64("acceleration", event.Acceleration).
		Int64("sync_counter", value).
		Msg("punch detected")
}
