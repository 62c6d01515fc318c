package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the payload carried by a sensor sample
type Kind string

const (
	KindAcceleration Kind = "acceleration"
	KindOrientation  Kind = "orientation"
)

var (
	// ErrMalformed is returned when the inbound frame is not valid JSON
	ErrMalformed = errors.New("malformed sensor message")
	// ErrMissingField is returned when a required spatial component or the timestamp is absent
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownType is returned for samples that are neither acceleration nor orientation
	ErrUnknownType = errors.New("unknown sample type")
)

// FieldError reports which required field a sample was missing
type FieldError struct {
	Kind  Kind
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s sample: %s is required", e.Kind, e.Field)
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// Vector3 is a three axis reading
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Orientation is a device orientation reading in degrees (alpha, beta, gamma)
type Orientation struct {
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Z                  float64 `json:"z"`
	Absolute           bool    `json:"absolute"`
	Normalized         bool    `json:"normalized,omitempty"`
	CalibrationApplied bool    `json:"calibrationApplied,omitempty"`
}

// Sample is a validated sensor sample. Exactly one of Acceleration or Orientation is set.
type Sample struct {
	Type         Kind         `json:"type"`
	Acceleration *Vector3     `json:"acceleration,omitempty"`
	Orientation  *Orientation `json:"orientation,omitempty"`
	Timestamp    float64      `json:"timestamp"`
	SourceID     string       `json:"sourceId,omitempty"`
}

// RawSample is the unvalidated wire shape of an inbound sample
type RawSample struct {
	Type         string          `json:"type"`
	Acceleration *rawVector      `json:"acceleration"`
	Orientation  *rawOrientation `json:"orientation"`
	Timestamp    *float64        `json:"timestamp"`
	SourceID     string          `json:"sourceId"`
}

type rawVector struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type rawOrientation struct {
	rawVector
	Absolute *bool `json:"absolute"`
}

// Parse decodes and validates a single inbound sensor frame
func Parse(data []byte) (Sample, error) {
	var raw RawSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Validate(raw)
}

// Validate turns a raw sample into a typed Sample. Missing fields reject the sample;
// a missing orientation.absolute defaults to false.
func Validate(raw RawSample) (Sample, error) {
	switch Kind(raw.Type) {
	case KindAcceleration:
		vec, err := requireVector(KindAcceleration, "acceleration", raw.Acceleration, raw.Timestamp)
		if err != nil {
			return Sample{}, err
		}
		return Sample{
			Type:         KindAcceleration,
			Acceleration: &vec,
			Timestamp:    *raw.Timestamp,
			SourceID:     raw.SourceID,
		}, nil

	case KindOrientation:
		var v *rawVector
		if raw.Orientation != nil {
			v = &raw.Orientation.rawVector
		}
		vec, err := requireVector(KindOrientation, "orientation", v, raw.Timestamp)
		if err != nil {
			return Sample{}, err
		}
		absolute := false
		if raw.Orientation.Absolute != nil {
			absolute = *raw.Orientation.Absolute
		}
		return Sample{
			Type: KindOrientation,
			Orientation: &Orientation{
				X:        vec.X,
				Y:        vec.Y,
				Z:        vec.Z,
				Absolute: absolute,
			},
			Timestamp: *raw.Timestamp,
			SourceID:  raw.SourceID,
		}, nil

	default:
		return Sample{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
}

func requireVector(kind Kind, prefix string, v *rawVector, ts *float64) (Vector3, error) {
	if v == nil {
		return Vector3{}, &FieldError{Kind: kind, Field: prefix}
	}
	switch {
	case v.X == nil:
		return Vector3{}, &FieldError{Kind: kind, Field: prefix + ".x"}
	case v.Y == nil:
		return Vector3{}, &FieldError{Kind: kind, Field: prefix + ".y"}
	case v.Z == nil:
		return Vector3{}, &FieldError{Kind: kind, Field: prefix + ".z"}
	case ts == nil:
		return Vector3{}, &FieldError{Kind: kind, Field: "timestamp"}
	}
	return Vector3{X: *v.X, Y: *v.Y, Z: *v.Z}, nil
}
