package sensor

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// Normalizer re-expresses orientation readings relative to a calibrated reference pose
type Normalizer interface {
	Calibrate(o Orientation) bool
	Normalize(o Orientation) Orientation
	IsCalibrated() bool
	Reset() bool
}

type quaternion struct {
	x, y, z, w float64
}

func identity() quaternion {
	return quaternion{w: 1}
}

// fromEuler builds a quaternion from euler angles in radians. Only the XYZ and ZXY
// orders used by device orientation are supported.
func fromEuler(x, y, z float64, order string) quaternion {
	c1, c2, c3 := math.Cos(x/2), math.Cos(y/2), math.Cos(z/2)
	s1, s2, s3 := math.Sin(x/2), math.Sin(y/2), math.Sin(z/2)

	switch order {
	case "ZXY":
		return quaternion{
			x: s1*c2*c3 - c1*s2*s3,
			y: c1*s2*c3 + s1*c2*s3,
			z: c1*c2*s3 + s1*s2*c3,
			w: c1*c2*c3 - s1*s2*s3,
		}
	default:
		return quaternion{
			x: s1*c2*c3 + c1*s2*s3,
			y: c1*s2*c3 - s1*c2*s3,
			z: c1*c2*s3 + s1*s2*c3,
			w: c1*c2*c3 - s1*s2*s3,
		}
	}
}

func (a quaternion) multiply(b quaternion) quaternion {
	return quaternion{
		x: a.x*b.w + a.w*b.x + a.y*b.z - a.z*b.y,
		y: a.y*b.w + a.w*b.y + a.z*b.x - a.x*b.z,
		z: a.z*b.w + a.w*b.z + a.x*b.y - a.y*b.x,
		w: a.w*b.w - a.x*b.x - a.y*b.y - a.z*b.z,
	}
}

// conjugate is the inverse for unit quaternions
func (a quaternion) conjugate() quaternion {
	return quaternion{x: -a.x, y: -a.y, z: -a.z, w: a.w}
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}

func radToDeg(r float64) float64 {
	return r * 180 / math.Pi
}

// flatCorrection rotates 90 degrees around X so a phone lying flat faces the screen
var flatCorrection = fromEuler(math.Pi/2, 0, 0, "XYZ")

func deviceQuaternion(o Orientation) quaternion {
	// alpha is rotation around Z, beta around X, gamma around Y
	q := fromEuler(degToRad(o.Y), degToRad(o.Z), degToRad(o.X), "ZXY")
	return q.multiply(flatCorrection)
}

// QuaternionNormalizer is the process-wide orientation calibration
type QuaternionNormalizer struct {
	mu         sync.RWMutex
	inverse    quaternion
	calibrated bool
}

// NewQuaternionNormalizer creates an uncalibrated normalizer
func NewQuaternionNormalizer() *QuaternionNormalizer {
	return &QuaternionNormalizer{inverse: identity()}
}

// Calibrate records o as the reference pose
func (n *QuaternionNormalizer) Calibrate(o Orientation) bool {
	reference := deviceQuaternion(o)

	n.mu.Lock()
	n.inverse = reference.conjugate()
	n.calibrated = true
	n.mu.Unlock()

	log.Info().
		Float64("x", o.X).
		Float64("y", o.Y).
		Float64("z", o.Z).
		Msg("orientation calibrated")
	return true
}

// Normalize returns o relative to the calibrated pose. Uncalibrated normalizers and
// absolute readings pass through unchanged.
func (n *QuaternionNormalizer) Normalize(o Orientation) Orientation {
	n.mu.RLock()
	calibrated, inverse := n.calibrated, n.inverse
	n.mu.RUnlock()

	if !calibrated || o.Absolute {
		return o
	}

	q := deviceQuaternion(o).multiply(inverse)

	ex := math.Atan2(2*(q.w*q.x+q.y*q.z), 1-2*(q.x*q.x+q.y*q.y))
	ey := math.Asin(clamp(2*(q.w*q.y-q.z*q.x), -1, 1))
	ez := math.Atan2(2*(q.w*q.z+q.x*q.y), 1-2*(q.y*q.y+q.z*q.z))

	return Orientation{
		X:                  radToDeg(ez),
		Y:                  radToDeg(ex),
		Z:                  radToDeg(ey),
		Absolute:           o.Absolute,
		Normalized:         true,
		CalibrationApplied: true,
	}
}

// IsCalibrated reports whether a reference pose has been recorded
func (n *QuaternionNormalizer) IsCalibrated() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.calibrated
}

// Reset clears the reference pose
func (n *QuaternionNormalizer) Reset() bool {
	n.mu.Lock()
	n.inverse = identity()
	n.calibrated = false
	n.mu.Unlock()
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
