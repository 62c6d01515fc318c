package punch

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/punchdeck/go/internal/sensor"
)

func accelSample(x, y, z float64) sensor.Sample {
	return sensor.Sample{
		Type:         sensor.KindAcceleration,
		Acceleration: &sensor.Vector3{X: x, Y: y, Z: z},
		Timestamp:    1,
	}
}

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

func newTestClassifier(cfg Config) (*Classifier, *Store, fakeClock) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	store := NewStore(cfg)
	return NewClassifier(store, clock), store, clock
}

func TestClassifyStrongPunch(t *testing.T) {
	c, _, _ := newTestClassifier(DefaultConfig())

	ev, ok := c.Classify(accelSample(20, 0, 0))
	require.True(t, ok)
	assert.Equal(t, EventTypePunch, ev.Type)
	assert.Equal(t, 20.0, ev.Acceleration)
	assert.Equal(t, ClassificationStrong, ev.Classification)
	assert.Nil(t, ev.SyncCounter)
}

func TestClassifyBelowMinThreshold(t *testing.T) {
	c, _, _ := newTestClassifier(DefaultConfig())

	_, ok := c.Classify(accelSample(1, 1, 1))
	assert.False(t, ok)

	// exactly the minimum is not above it
	_, ok = c.Classify(accelSample(2, -2, 0))
	assert.False(t, ok)
	assert.Zero(t, c.LastAcceleration())
}

func TestClassifyBetweenMinAndWeakTracksAcceleration(t *testing.T) {
	c, _, _ := newTestClassifier(DefaultConfig())

	_, ok := c.Classify(accelSample(0, 2.5, 0))
	assert.False(t, ok)
	assert.Equal(t, 2.5, c.LastAcceleration())
}

func TestClassifyCooldown(t *testing.T) {
	c, _, clock := newTestClassifier(DefaultConfig())

	_, ok := c.Classify(accelSample(20, 0, 0))
	require.True(t, ok)

	clock.Advance(50 * time.Millisecond)
	_, ok = c.Classify(accelSample(25, 0, 0))
	assert.False(t, ok, "second punch inside cooldown must be suppressed")

	// elapsed must be strictly greater than the cooldown
	clock.Advance(250 * time.Millisecond)
	_, ok = c.Classify(accelSample(25, 0, 0))
	assert.False(t, ok)

	clock.Advance(time.Millisecond)
	ev, ok := c.Classify(accelSample(25, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 25.0, ev.Acceleration)
}

func TestClassifyTierBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		accel float64
		want  Classification
	}{
		{3.5, ClassificationWeak},
		{5.99, ClassificationWeak},
		{6, ClassificationNormal},
		{14.99, ClassificationNormal},
		{15, ClassificationStrong},
		{39, ClassificationStrong},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.accel, cfg), "acceleration %v", tt.accel)
	}
}

func TestClassifyAppliesWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccelWeights = Weights{X: 0.1, Y: 1, Z: 2}
	c, _, _ := newTestClassifier(cfg)

	// x dominates raw but is weighted down; z wins after weighting
	ev, ok := c.Classify(accelSample(30, 1, -4))
	require.True(t, ok)
	assert.Equal(t, 8.0, ev.Acceleration)
	assert.Equal(t, ClassificationNormal, ev.Classification)
}

func TestClassifyIgnoresOrientation(t *testing.T) {
	c, _, _ := newTestClassifier(DefaultConfig())

	_, ok := c.Classify(sensor.Sample{
		Type:        sensor.KindOrientation,
		Orientation: &sensor.Orientation{X: 90, Y: 90, Z: 90},
	})
	assert.False(t, ok)
}

func TestClassifyReadsLatestConfig(t *testing.T) {
	c, store, _ := newTestClassifier(DefaultConfig())

	weak := 99.0
	store.Update(Patch{WeakThreshold: &weak})

	_, ok := c.Classify(accelSample(20, 0, 0))
	assert.False(t, ok)
}

func TestClassifyKeepsSourceID(t *testing.T) {
	c, _, _ := newTestClassifier(DefaultConfig())

	s := accelSample(10, 0, 0)
	s.SourceID = "phone-7"
	ev, ok := c.Classify(s)
	require.True(t, ok)
	assert.Equal(t, "phone-7", ev.SourceID)
}

func TestDirectionFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DirectionFilter = DirectionFilter{Enabled: true, Direction: "positive-x"}

	t.Run("dominant y never classifies", func(t *testing.T) {
		c, _, _ := newTestClassifier(cfg)
		_, ok := c.Classify(accelSample(10, 30, 0))
		assert.False(t, ok)
	})

	t.Run("negative x never classifies", func(t *testing.T) {
		c, _, _ := newTestClassifier(cfg)
		_, ok := c.Classify(accelSample(-20, 0, 0))
		assert.False(t, ok)
	})

	t.Run("positive x above threshold classifies", func(t *testing.T) {
		c, _, _ := newTestClassifier(cfg)
		ev, ok := c.Classify(accelSample(20, 3, -1))
		require.True(t, ok)
		assert.Equal(t, ClassificationStrong, ev.Classification)
	})

	t.Run("negative direction", func(t *testing.T) {
		neg := cfg
		neg.DirectionFilter.Direction = "negative-z"
		c, _, _ := newTestClassifier(neg)
		_, ok := c.Classify(accelSample(0, 0, -7))
		assert.True(t, ok)
	})

	t.Run("malformed direction filters everything", func(t *testing.T) {
		bad := cfg
		bad.DirectionFilter.Direction = "sideways"
		c, _, _ := newTestClassifier(bad)
		_, ok := c.Classify(accelSample(20, 0, 0))
		assert.False(t, ok)
	})
}

func TestDominantAxis(t *testing.T) {
	axis, value := DominantAxis(sensor.Vector3{X: 1, Y: -5, Z: 4})
	assert.Equal(t, AxisY, axis)
	assert.Equal(t, -5.0, value)

	// ties resolve toward x, then y
	axis, _ = DominantAxis(sensor.Vector3{X: -3, Y: 3, Z: 3})
	assert.Equal(t, AxisX, axis)
	axis, _ = DominantAxis(sensor.Vector3{X: 1, Y: 3, Z: -3})
	assert.Equal(t, AxisY, axis)
}

func TestZeroCountsAsNegative(t *testing.T) {
	f := DirectionFilter{Enabled: true, Direction: "negative-x"}
	assert.True(t, PassesDirectionFilter(sensor.Vector3{}, f))

	f.Direction = "positive-x"
	assert.False(t, PassesDirectionFilter(sensor.Vector3{}, f))
}

func TestParseDirection(t *testing.T) {
	positive, axis, ok := ParseDirection("positive-y")
	require.True(t, ok)
	assert.True(t, positive)
	assert.Equal(t, AxisY, axis)

	_, _, ok = ParseDirection("positive-w")
	assert.False(t, ok)
	_, _, ok = ParseDirection("up-x")
	assert.False(t, ok)
	_, _, ok = ParseDirection("x")
	assert.False(t, ok)
}
