package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/punch"
	"github.com/mcdev12/punchdeck/go/internal/sensor"
)

// handleControl applies a control message sent by a debug client
func (s *Service) handleControl(c *Connection, message []byte) {
	msg, err := ParseControlMessage(message)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed control message")
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("type", string(msg.Type)).
		Msg("control message received")

	switch msg.Type {
	case MessageTypeConfig:
		s.handleConfigUpdate(c, msg)

	case MessageTypeGetConfig:
		s.sendTo(c, s.configNotice("Current punch configuration"))

	case MessageTypeResetPosition:
		s.handleResetPosition(msg)

	case MessageTypeCalibratePosition:
		s.handleCalibratePosition(msg)

	case MessageTypeCalibrateOrientation:
		if msg.Orientation == nil {
			s.sendTo(c, SystemMessage{
				Type:    MessageTypeSystem,
				Message: "Orientation calibration failed",
				Error:   "orientation is required",
			})
			return
		}
		s.handleCalibrateOrientation(*msg.Orientation)

	case MessageTypeResetOrientation:
		ok := s.normalizer.Reset()
		message := "Orientation calibration reset"
		if !ok {
			message = "Orientation calibration reset failed"
		}
		s.broadcast(ChannelDebug, SystemMessage{
			Type:        MessageTypeSystem,
			Message:     message,
			Calibration: s.calibrationStatus(nil),
		})

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("ignoring unknown control message")
	}
}

// handleConfigUpdate merges a partial tuning. The store announces the result to every
// debug client; only decode failures are answered directly.
func (s *Service) handleConfigUpdate(c *Connection, msg ControlMessage) {
	if len(msg.PunchConfig) == 0 || bytes.Equal(msg.PunchConfig, []byte("null")) {
		return
	}

	patch, err := decodePatch(msg.PunchConfig)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("rejected punch configuration")
		notice := s.configNotice("Failed to update punch configuration")
		notice.Error = err.Error()
		s.sendTo(c, notice)
		return
	}

	cfg := s.store.Update(patch)
	log.Info().
		Str("connection_id", c.ID).
		Float64("weak", cfg.WeakThreshold).
		Float64("normal", cfg.NormalThreshold).
		Float64("strong", cfg.StrongThreshold).
		Float64("cooldown_ms", cfg.CoolDownMs).
		Msg("updated punch configuration")
}

func decodePatch(data []byte) (punch.Patch, error) {
	var patch punch.Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return punch.Patch{}, fmt.Errorf("invalid punch configuration: %w", err)
	}
	return patch, nil
}

// handleResetPosition restarts the shared shuffle seed
func (s *Service) handleResetPosition(msg ControlMessage) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	value := s.counter.Reset(msg.Value)
	s.broadcast(ChannelUISignals, NewSyncCounterMessage(value))
	s.broadcast(ChannelDebug, SystemMessage{
		Type:        MessageTypeSystem,
		Message:     "Position reset",
		SyncCounter: &value,
	})

	log.Info().Int64("sync_counter", value).Msg("position reset")
}

// handleCalibratePosition takes the current pose as the reference and moves every display
// to a fresh shuffle
func (s *Service) handleCalibratePosition(msg ControlMessage) {
	reference := msg.Orientation
	if reference == nil {
		reference = s.latestOrientation()
	}

	calibrated := false
	if reference != nil {
		calibrated = s.normalizer.Calibrate(*reference)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	value := s.counter.Increment()
	s.broadcast(ChannelUISignals, NewSyncCounterMessage(value))

	message := "Position calibrated"
	if !calibrated {
		message = "Position calibrated without orientation reference"
	}
	s.broadcast(ChannelDebug, SystemMessage{
		Type:        MessageTypeSystem,
		Message:     message,
		SyncCounter: &value,
		Calibration: s.calibrationStatus(reference),
	})

	log.Info().
		Int64("sync_counter", value).
		Bool("orientation_calibrated", calibrated).
		Msg("position calibrated")
}

func (s *Service) handleCalibrateOrientation(o sensor.Orientation) {
	message := "Orientation calibrated successfully"
	if !s.normalizer.Calibrate(o) {
		message = "Orientation calibration failed"
	}

	s.broadcast(ChannelDebug, SystemMessage{
		Type:        MessageTypeSystem,
		Message:     message,
		Calibration: s.calibrationStatus(&o),
	})
}

func (s *Service) calibrationStatus(reference *sensor.Orientation) *CalibrationStatus {
	status := &CalibrationStatus{
		IsCalibrated: s.normalizer.IsCalibrated(),
		Timestamp:    s.clock.Now().UnixMilli(),
	}
	if reference != nil {
		status.ReferenceOrientation = &sensor.Vector3{X: reference.X, Y: reference.Y, Z: reference.Z}
	}
	return status
}
