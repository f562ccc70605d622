package pose

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/camcal/spatialmath"
	"go.viam.com/camcal/transform"
)

var testCamera = &transform.CameraIntrinsics{
	PinholeCameraIntrinsics: transform.PinholeCameraIntrinsics{
		Width: 1280, Height: 720,
		Fx: 900, Fy: 910, Ppx: 640, Ppy: 360,
	},
	Distortion: &transform.BrownConrady{},
}

// observeMarker projects the template corners through the test camera at a known pose.
func observeMarker(t *testing.T, template *MarkerTemplate, rvec, tvec r3.Vector) *MarkerObservation {
	t.Helper()
	rot := spatialmath.NewRotationMatrixFromAxisAngle(rvec)
	obs := &MarkerObservation{ID: 7}
	for i, corner := range template.Corners {
		obs.Corners[i] = testCamera.ProjectPoint(rot, tvec, corner)
	}
	return obs
}

func TestNewMarkerTemplate(t *testing.T) {
	template, err := NewMarkerTemplate(DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, template.Side, test.ShouldEqual, 0.094)
	// TL, TR, BR, BL, centered on the origin at z=0
	test.That(t, template.Corners[0].X, test.ShouldAlmostEqual, -0.047)
	test.That(t, template.Corners[0].Y, test.ShouldAlmostEqual, 0.047)
	test.That(t, template.Corners[1].X, test.ShouldAlmostEqual, 0.047)
	test.That(t, template.Corners[2].Y, test.ShouldAlmostEqual, -0.047)
	test.That(t, template.Corners[3].X, test.ShouldAlmostEqual, -0.047)
	for _, c := range template.Corners {
		test.That(t, c.Z, test.ShouldEqual, 0)
	}

	_, err = NewMarkerTemplate(0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewMarkerTemplate(-0.1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimatePoseRecoversKnownPose(t *testing.T) {
	logger := golog.NewTestLogger(t)
	template, err := NewMarkerTemplate(DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := NewEstimator(testCamera, logger)
	test.That(t, err, test.ShouldBeNil)

	poses := []struct{ rvec, tvec r3.Vector }{
		{r3.Vector{X: 0.1, Y: -0.2, Z: 0.05}, r3.Vector{X: 0.02, Y: -0.05, Z: 0.6}},
		{r3.Vector{X: -0.3, Y: 0.15, Z: 0.4}, r3.Vector{X: -0.1, Y: 0.08, Z: 0.9}},
		{r3.Vector{X: 0.5, Y: 0.1, Z: -0.2}, r3.Vector{X: 0.15, Y: 0.02, Z: 0.45}},
	}
	for _, p := range poses {
		obs := observeMarker(t, template, p.rvec, p.tvec)
		got, err := estimator.EstimatePose(template, obs)
		test.That(t, err, test.ShouldBeNil)

		// translation within 1% of the marker side, rotation within 1 degree
		transTol := 0.01 * template.Side
		test.That(t, math.Abs(got.Translation.X-p.tvec.X), test.ShouldBeLessThan, transTol)
		test.That(t, math.Abs(got.Translation.Y-p.tvec.Y), test.ShouldBeLessThan, transTol)
		test.That(t, math.Abs(got.Translation.Z-p.tvec.Z), test.ShouldBeLessThan, transTol)
		test.That(t, got.Rotation.Sub(p.rvec).Norm(), test.ShouldBeLessThan, math.Pi/180)

		test.That(t, got.Distance, test.ShouldAlmostEqual, p.tvec.Norm(), transTol)
		test.That(t, got.Euler, test.ShouldNotBeNil)
		test.That(t, got.ID, test.ShouldEqual, obs.ID)
	}
}

func TestEstimatePoseReprojectionConsistency(t *testing.T) {
	logger := golog.NewTestLogger(t)
	template, err := NewMarkerTemplate(DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := NewEstimator(testCamera, logger)
	test.That(t, err, test.ShouldBeNil)

	rvec := r3.Vector{X: 0.2, Y: -0.1, Z: 0.3}
	tvec := r3.Vector{X: -0.05, Y: 0.03, Z: 0.7}
	obs := observeMarker(t, template, rvec, tvec)
	got, err := estimator.EstimatePose(template, obs)
	test.That(t, err, test.ShouldBeNil)

	rot := spatialmath.NewRotationMatrixFromAxisAngle(got.Rotation)
	for i, corner := range template.Corners {
		reproj := testCamera.ProjectPoint(rot, got.Translation, corner)
		test.That(t, reproj.Sub(obs.Corners[i]).Norm(), test.ShouldBeLessThan, 2.0)
	}
}

func TestEstimatePoseDegenerateCorners(t *testing.T) {
	logger := golog.NewTestLogger(t)
	template, err := NewMarkerTemplate(DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := NewEstimator(testCamera, logger)
	test.That(t, err, test.ShouldBeNil)

	// collinear corners carry no plane orientation
	obs := &MarkerObservation{
		ID: 3,
		Corners: [4]r2.Point{
			{X: 100, Y: 100},
			{X: 200, Y: 100},
			{X: 300, Y: 100},
			{X: 400, Y: 100},
		},
	}
	_, err = estimator.EstimatePose(template, obs)
	test.That(t, errors.Is(err, ErrDegenerateGeometry), test.ShouldBeTrue)
}

func TestNewEstimatorRejectsInvalidCamera(t *testing.T) {
	logger := golog.NewTestLogger(t)
	bad := &transform.CameraIntrinsics{}
	_, err := NewEstimator(bad, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMarkerPoseStrings(t *testing.T) {
	logger := golog.NewTestLogger(t)
	template, err := NewMarkerTemplate(DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := NewEstimator(testCamera, logger)
	test.That(t, err, test.ShouldBeNil)

	obs := observeMarker(t, template, r3.Vector{X: 0.1}, r3.Vector{Z: 0.5})
	got, err := estimator.EstimatePose(template, obs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.String(), test.ShouldContainSubstring, "marker 7")
	test.That(t, got.DetailedString(), test.ShouldContainSubstring, "euler (deg)")
}
