package punch

import (
	"math"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/punchdeck/go/internal/sensor"
)

// Classification is the strength tier of a punch
type Classification string

const (
	ClassificationWeak   Classification = "weak"
	ClassificationNormal Classification = "normal"
	ClassificationStrong Classification = "strong"
)

// EventTypePunch is the wire type of a punch event
const EventTypePunch = "punch"

// Event is a classified punch
type Event struct {
	Type           string         `json:"type"`
	Acceleration   float64        `json:"acceleration"`
	Classification Classification `json:"classification"`
	SyncCounter    *int64         `json:"syncCounter,omitempty"`
	SourceID       string         `json:"sourceId,omitempty"`
}

// ConfigSource supplies the latest tuning to a classifier
type ConfigSource interface {
	Snapshot() Config
}

// Classifier turns a stream of acceleration samples from one source into punch events.
// It is not safe for concurrent use; each input stream owns its own instance.
type Classifier struct {
	config ConfigSource
	clock  clockwork.Clock

	lastAcceleration float64
	lastPunchAtMs    int64
}

// NewClassifier creates a classifier reading its tuning from config on every sample
func NewClassifier(config ConfigSource, clock clockwork.Clock) *Classifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Classifier{
		config: config,
		clock:  clock,
	}
}

// LastAcceleration is the weighted acceleration of the most recent sample that cleared
// the minimum threshold and direction filter
func (c *Classifier) LastAcceleration() float64 {
	return c.lastAcceleration
}

// Classify returns a punch event when s crosses the configured thresholds outside of the
// cooldown window. Non-acceleration samples never classify.
func (c *Classifier) Classify(s sensor.Sample) (Event, bool) {
	if s.Type != sensor.KindAcceleration || s.Acceleration == nil {
		return Event{}, false
	}

	cfg := c.config.Snapshot()
	accel := *s.Acceleration

	acceleration := WeightedAcceleration(accel, cfg.AccelWeights)

	// comparisons are written so NaN tuning or input never classifies
	if !(acceleration > cfg.MinThreshold && PassesDirectionFilter(accel, cfg.DirectionFilter)) {
		return Event{}, false
	}
	c.lastAcceleration = acceleration

	now := c.clock.Now().UnixMilli()
	if !(acceleration > cfg.WeakThreshold && float64(now-c.lastPunchAtMs) > cfg.CoolDownMs) {
		return Event{}, false
	}
	if now > c.lastPunchAtMs {
		c.lastPunchAtMs = now
	}

	return Event{
		Type:           EventTypePunch,
		Acceleration:   acceleration,
		Classification: Classify(acceleration, cfg),
		SourceID:       s.SourceID,
	}, true
}

// Classify maps an acceleration to its tier. Boundaries are inclusive at the top.
func Classify(acceleration float64, cfg Config) Classification {
	switch {
	case acceleration >= cfg.StrongThreshold:
		return ClassificationStrong
	case acceleration >= cfg.NormalThreshold:
		return ClassificationNormal
	default:
		return ClassificationWeak
	}
}

// WeightedAcceleration is the largest weighted absolute axis value, not the vector norm
func WeightedAcceleration(a sensor.Vector3, w Weights) float64 {
	return math.Max(
		math.Abs(a.X)*w.X,
		math.Max(math.Abs(a.Y)*w.Y, math.Abs(a.Z)*w.Z),
	)
}

// Axis names a spatial axis
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// DominantAxis returns the raw axis with the largest magnitude and its signed value.
// X is the initial candidate and only a strictly larger magnitude replaces it.
func DominantAxis(a sensor.Vector3) (Axis, float64) {
	axis, value := AxisX, a.X
	if math.Abs(a.Y) > math.Abs(value) {
		axis, value = AxisY, a.Y
	}
	if math.Abs(a.Z) > math.Abs(value) {
		axis, value = AxisZ, a.Z
	}
	return axis, value
}

// ParseDirection splits "positive-x" style directions. ok is false for anything else.
func ParseDirection(direction string) (positive bool, axis Axis, ok bool) {
	sign, name, found := strings.Cut(direction, "-")
	if !found {
		return false, "", false
	}

	switch Axis(name) {
	case AxisX, AxisY, AxisZ:
		axis = Axis(name)
	default:
		return false, "", false
	}

	switch sign {
	case "positive":
		return true, axis, true
	case "negative":
		return false, axis, true
	default:
		return false, "", false
	}
}

// PassesDirectionFilter reports whether the dominant raw axis and its sign match the
// filter. Zero counts as negative. A disabled filter always passes.
func PassesDirectionFilter(a sensor.Vector3, f DirectionFilter) bool {
	if !f.Enabled {
		return true
	}

	positive, axis, ok := ParseDirection(f.Direction)
	if !ok {
		return false
	}

	dominant, value := DominantAxis(a)
	if dominant != axis {
		return false
	}
	return (value > 0) == positive
}
