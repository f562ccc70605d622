package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestRodriguesIdentity(t *testing.T) {
	rm := NewRotationMatrixFromAxisAngle(r3.Vector{})
	test.That(t, rm.CheckValid(), test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, rm.At(i, j), test.ShouldEqual, want)
		}
	}
	// tiny angles must not produce NaN/Inf
	rm = NewRotationMatrixFromAxisAngle(r3.Vector{X: 1e-14, Y: -1e-15, Z: 1e-14})
	for _, v := range rm.RawMatrix() {
		test.That(t, math.IsNaN(v) || math.IsInf(v, 0), test.ShouldBeFalse)
	}
}

func TestRodriguesKnownRotations(t *testing.T) {
	// 90 degrees about z maps x to y
	rm := NewRotationMatrixFromAxisAngle(r3.Vector{X: 0, Y: 0, Z: math.Pi / 2})
	got := rm.Mul(r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, got.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-12)

	// 180 degrees about x maps y to -y
	rm = NewRotationMatrixFromAxisAngle(r3.Vector{X: math.Pi, Y: 0, Z: 0})
	got = rm.Mul(r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, got.Y, test.ShouldAlmostEqual, -1, 1e-12)
}

func TestAxisAngleRoundTrip(t *testing.T) {
	vecs := []r3.Vector{
		{X: 0.1, Y: 0, Z: 0},
		{X: 0, Y: -0.5, Z: 0.2},
		{X: 1.2, Y: 0.7, Z: -0.3},
		{X: -2.0, Y: 1.1, Z: 0.4},
		{X: 0.01, Y: 0.02, Z: -0.03},
		r3.Vector{X: 1, Y: 1, Z: 1}.Normalize().Mul(3.0), // theta close to pi
	}
	for _, v := range vecs {
		rm := NewRotationMatrixFromAxisAngle(v)
		test.That(t, rm.CheckValid(), test.ShouldBeNil)
		got := rm.AxisAngle()
		test.That(t, got.X, test.ShouldAlmostEqual, v.X, 1e-8)
		test.That(t, got.Y, test.ShouldAlmostEqual, v.Y, 1e-8)
		test.That(t, got.Z, test.ShouldAlmostEqual, v.Z, 1e-8)
	}
}

func TestEulerRoundTripThroughAxisAngle(t *testing.T) {
	ee := NewEulerExtractor()
	vecs := []r3.Vector{
		{X: 0.3, Y: 0.2, Z: 0.1},
		{X: -0.8, Y: 0.4, Z: 1.2},
		{X: 0.05, Y: -1.1, Z: 0.6},
	}
	for _, v := range vecs {
		eu := ee.Euler(NewRotationMatrixFromAxisAngle(v))
		got := eu.RotationMatrix().AxisAngle()
		test.That(t, got.X, test.ShouldAlmostEqual, v.X, 1e-8)
		test.That(t, got.Y, test.ShouldAlmostEqual, v.Y, 1e-8)
		test.That(t, got.Z, test.ShouldAlmostEqual, v.Z, 1e-8)
	}
}

func TestEulerGimbalLock(t *testing.T) {
	ee := NewEulerExtractor()
	// pitch exactly +90 degrees
	eu := ee.Euler((&EulerAngles{Roll: 0.4, Pitch: math.Pi / 2, Yaw: 0}).RotationMatrix())
	test.That(t, eu.Yaw, test.ShouldEqual, 0)
	test.That(t, eu.PitchDegrees(), test.ShouldAlmostEqual, 90, 1e-6)
	for _, a := range []float64{eu.Roll, eu.Pitch, eu.Yaw} {
		test.That(t, math.IsNaN(a) || math.IsInf(a, 0), test.ShouldBeFalse)
	}

	// pitch exactly -90 degrees
	eu = ee.Euler((&EulerAngles{Roll: -0.2, Pitch: -math.Pi / 2, Yaw: 0}).RotationMatrix())
	test.That(t, eu.Yaw, test.ShouldEqual, 0)
	test.That(t, eu.PitchDegrees(), test.ShouldAlmostEqual, -90, 1e-6)
}

func TestR4Conversions(t *testing.T) {
	v := r3.Vector{X: 0.3, Y: -0.4, Z: 0.5}
	r4 := R3ToR4(v)
	test.That(t, r4.Theta, test.ShouldAlmostEqual, v.Norm(), 1e-12)
	back := r4.ToR3()
	test.That(t, back.X, test.ShouldAlmostEqual, v.X, 1e-12)
	test.That(t, back.Y, test.ShouldAlmostEqual, v.Y, 1e-12)
	test.That(t, back.Z, test.ShouldAlmostEqual, v.Z, 1e-12)

	test.That(t, R3ToR4(r3.Vector{}).Theta, test.ShouldEqual, 0)
}

func TestNewRotationMatrixRejectsNonRotations(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)

	// scaled matrix is not orthonormal
	_, err = NewRotationMatrix([]float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	test.That(t, err, test.ShouldNotBeNil)

	// reflection has determinant -1
	_, err = NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	test.That(t, err, test.ShouldNotBeNil)

	rm, err := NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rm.Det(), test.ShouldAlmostEqual, 1, 1e-12)
}
