package spatialmath

import (
	"math"
)

// EulerAngles are three angles (in radians) describing a rotation as successive
// rotations about the x (roll), y (pitch), and z (yaw) axes.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RollDegrees returns the roll angle in degrees.
func (ea *EulerAngles) RollDegrees() float64 { return radToDeg(ea.Roll) }

// PitchDegrees returns the pitch angle in degrees.
func (ea *EulerAngles) PitchDegrees() float64 { return radToDeg(ea.Pitch) }

// YawDegrees returns the yaw angle in degrees.
func (ea *EulerAngles) YawDegrees() float64 { return radToDeg(ea.Yaw) }

// EulerExtractor converts rotation matrices to Euler angles. SingularityThreshold is the
// value of sqrt(R00^2 + R10^2) below which the matrix is considered to be at gimbal lock
// (pitch at +/- 90 degrees); it is a numerical tolerance tied to the precision of the
// matrix representation, not a derived quantity, so it is a field rather than a constant.
type EulerExtractor struct {
	SingularityThreshold float64 `json:"singularity_threshold"`
}

// NewEulerExtractor returns an extractor with the default singularity threshold.
func NewEulerExtractor() *EulerExtractor {
	return &EulerExtractor{SingularityThreshold: 1e-6}
}

// Euler extracts Euler angles from a rotation matrix. At gimbal lock, roll and yaw
// become indistinguishable; the convention here assigns the whole remaining rotation to
// roll and returns yaw exactly 0. All outputs are finite for any proper rotation matrix.
func (ee *EulerExtractor) Euler(rm *RotationMatrix) *EulerAngles {
	sy := math.Hypot(rm.At(0, 0), rm.At(1, 0))
	if sy < ee.SingularityThreshold {
		return &EulerAngles{
			Roll:  math.Atan2(-rm.At(1, 2), rm.At(1, 1)),
			Pitch: math.Atan2(-rm.At(2, 0), sy),
			Yaw:   0,
		}
	}
	return &EulerAngles{
		Roll:  math.Atan2(rm.At(2, 1), rm.At(2, 2)),
		Pitch: math.Atan2(-rm.At(2, 0), sy),
		Yaw:   math.Atan2(rm.At(1, 0), rm.At(0, 0)),
	}
}

// RotationMatrix composes the rotation matrix R = Rz(yaw) * Ry(pitch) * Rx(roll).
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	sr, cr := math.Sincos(ea.Roll)
	sp, cp := math.Sincos(ea.Pitch)
	sy, cy := math.Sincos(ea.Yaw)
	return &RotationMatrix{mat: [9]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	}}
}

func radToDeg(r float64) float64 {
	return r * 180 / math.Pi
}
