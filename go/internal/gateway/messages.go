package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/punchdeck/go/internal/punch"
	"github.com/mcdev12/punchdeck/go/internal/sensor"
)

// MessageType is the "type" discriminator of every JSON frame
type MessageType string

const (
	MessageTypeSync   MessageType = "sync"
	MessageTypeSystem MessageType = "system"
	MessageTypePunch  MessageType = punch.EventTypePunch

	// Control messages accepted on the debug channel
	MessageTypeConfig               MessageType = "config"
	MessageTypeGetConfig            MessageType = "getConfig"
	MessageTypeResetPosition        MessageType = "resetPosition"
	MessageTypeCalibratePosition    MessageType = "calibratePosition"
	MessageTypeCalibrateOrientation MessageType = "calibrateOrientation"
	MessageTypeResetOrientation     MessageType = "resetOrientation"
)

// SyncCounterMessage pushes the current sync counter to display clients
type SyncCounterMessage struct {
	Type        MessageType `json:"type"`
	SyncCounter int64       `json:"syncCounter"`
}

// NewSyncCounterMessage creates a sync counter push
func NewSyncCounterMessage(value int64) SyncCounterMessage {
	return SyncCounterMessage{Type: MessageTypeSync, SyncCounter: value}
}

// SystemMessage is a notice for debug clients
type SystemMessage struct {
	Type        MessageType        `json:"type"`
	Message     string             `json:"message"`
	PunchConfig *punch.Config      `json:"punchConfig,omitempty"`
	SyncCounter *int64             `json:"syncCounter,omitempty"`
	Calibration *CalibrationStatus `json:"calibration,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// CalibrationStatus reports the orientation normalizer state
type CalibrationStatus struct {
	IsCalibrated         bool            `json:"isCalibrated"`
	Timestamp            int64           `json:"timestamp"`
	ReferenceOrientation *sensor.Vector3 `json:"referenceOrientation,omitempty"`
}

// ControlMessage is an inbound debug channel frame
type ControlMessage struct {
	Type        MessageType         `json:"type"`
	PunchConfig json.RawMessage     `json:"punchConfig,omitempty"`
	Orientation *sensor.Orientation `json:"orientation,omitempty"`
	Value       *int64              `json:"value,omitempty"`
}

// ParseControlMessage decodes a debug channel frame
func ParseControlMessage(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("failed to decode control message: %w", err)
	}
	return msg, nil
}

// envelope is enough of any frame to route it
type envelope struct {
	Type MessageType `json:"type"`
}

func peekType(data []byte) (MessageType, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
