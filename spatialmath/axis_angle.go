package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation is an axis, i.e. a line from the origin to a point on the unit sphere
// (rx, ry, rz), and a rotation around that axis, theta. These four numbers can be used
// as-is (R4), or theta can be multiplied into the unit axis to give a single R3 vector
// whose length is theta and whose direction is the axis. The solvers in this module work
// in the R3 form.

// zeroAngleThreshold is the angle below which an axis-angle vector is treated as the
// identity rotation; the axis is undefined there.
const zeroAngleThreshold = 1e-10

// R4AA represents an R4 axis angle: a rotation of Theta radians about the unit axis
// (RX, RY, RZ).
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA representing no rotation.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// R3ToR4 converts an R3 axis-angle vector to its R4 form.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta < zeroAngleThreshold {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// ToR3 converts an R4 axis angle to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Normalize scales the x, y, and z components of an R4 axis angle to be on the unit sphere.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm < zeroAngleThreshold {
		r4.RX, r4.RY, r4.RZ = 0, 0, 1
		return
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// NewRotationMatrixFromAxisAngle converts an R3 axis-angle vector to a rotation matrix
// using the Rodrigues formula, R = I + sin(theta)K + (1-cos(theta))K^2, where K is the
// cross-product matrix of the unit axis. A vector with near-zero norm maps to the
// identity rotation.
func NewRotationMatrixFromAxisAngle(aa r3.Vector) *RotationMatrix {
	theta := aa.Norm()
	if theta < zeroAngleThreshold {
		return NewZeroRotationMatrix()
	}
	k := aa.Mul(1 / theta)
	s, c := math.Sincos(theta)
	v := 1 - c

	return &RotationMatrix{mat: [9]float64{
		c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s,
		k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s,
		k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v,
	}}
}

// AxisAngle converts the rotation matrix back to an R3 axis-angle vector, the inverse of
// NewRotationMatrixFromAxisAngle. Angles are returned in [0, pi].
func (rm *RotationMatrix) AxisAngle() r3.Vector {
	m := rm.mat
	// clamp for acos; trace can drift slightly outside [-1, 3]
	cosTheta := (m[0] + m[4] + m[8] - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	if theta < zeroAngleThreshold {
		return r3.Vector{}
	}
	if math.Pi-theta > 1e-6 {
		axis := r3.Vector{
			X: m[7] - m[5],
			Y: m[2] - m[6],
			Z: m[3] - m[1],
		}.Mul(1 / (2 * math.Sin(theta)))
		return axis.Mul(theta)
	}

	// theta near pi, the skew part vanishes; recover the axis from the symmetric part
	axis := r3.Vector{
		X: math.Sqrt(math.Max(0, (m[0]+1)/2)),
		Y: math.Sqrt(math.Max(0, (m[4]+1)/2)),
		Z: math.Sqrt(math.Max(0, (m[8]+1)/2)),
	}
	// pick signs consistent with the off-diagonal terms
	if m[1]+m[3] < 0 {
		axis.Y = -axis.Y
	}
	if m[2]+m[6] < 0 {
		axis.Z = -axis.Z
	}
	return axis.Normalize().Mul(theta)
}
