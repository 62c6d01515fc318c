package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerPassThroughUntilCalibrated(t *testing.T) {
	n := NewQuaternionNormalizer()
	in := Orientation{X: 45, Y: 10, Z: -20}

	assert.False(t, n.IsCalibrated())
	assert.Equal(t, in, n.Normalize(in))
}

func TestNormalizerReferencePoseBecomesZero(t *testing.T) {
	n := NewQuaternionNormalizer()
	ref := Orientation{X: 120, Y: 35, Z: -15}

	require.True(t, n.Calibrate(ref))
	require.True(t, n.IsCalibrated())

	out := n.Normalize(ref)
	assert.True(t, out.Normalized)
	assert.True(t, out.CalibrationApplied)
	assert.InDelta(t, 0, out.X, 1e-6)
	assert.InDelta(t, 0, out.Y, 1e-6)
	assert.InDelta(t, 0, out.Z, 1e-6)
}

func TestNormalizerSkipsAbsoluteReadings(t *testing.T) {
	n := NewQuaternionNormalizer()
	n.Calibrate(Orientation{X: 90})

	in := Orientation{X: 12, Y: 3, Z: 4, Absolute: true}
	assert.Equal(t, in, n.Normalize(in))
}

func TestNormalizerReset(t *testing.T) {
	n := NewQuaternionNormalizer()
	n.Calibrate(Orientation{X: 90})

	assert.True(t, n.Reset())
	assert.False(t, n.IsCalibrated())

	in := Orientation{X: 1, Y: 2, Z: 3}
	assert.Equal(t, in, n.Normalize(in))
}
