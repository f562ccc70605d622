package calibration

import (
	"image"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/camcal/chessboard"
	"go.viam.com/camcal/spatialmath"
	"go.viam.com/camcal/transform"
)

var syntheticCamera = transform.CameraIntrinsics{
	PinholeCameraIntrinsics: transform.PinholeCameraIntrinsics{
		Width: 640, Height: 480,
		Fx: 800, Fy: 820, Ppx: 320, Ppy: 240,
	},
	Distortion: &transform.BrownConrady{},
}

// projectSample renders the grid through the synthetic camera at the given pose.
func projectSample(t *testing.T, grid *chessboard.ObjectPointGrid, rvec, tvec r3.Vector) *chessboard.CorrespondenceSample {
	t.Helper()
	rot := spatialmath.NewRotationMatrixFromAxisAngle(rvec)
	pts := make([]r2.Point, grid.Size())
	for i := 0; i < grid.Size(); i++ {
		pts[i] = syntheticCamera.ProjectPoint(rot, tvec, grid.At(i))
	}
	sample, err := chessboard.NewCorrespondenceSample(grid, pts)
	test.That(t, err, test.ShouldBeNil)
	return sample
}

func syntheticSamples(t *testing.T, n int) []*chessboard.CorrespondenceSample {
	t.Helper()
	grid, err := chessboard.NewObjectPointGrid(4, 5, 20)
	test.That(t, err, test.ShouldBeNil)
	poses := []struct{ rvec, tvec r3.Vector }{
		{r3.Vector{X: 0.1, Y: -0.2, Z: 0.03}, r3.Vector{X: -40, Y: -30, Z: 400}},
		{r3.Vector{X: -0.25, Y: 0.15, Z: -0.05}, r3.Vector{X: -60, Y: -20, Z: 450}},
		{r3.Vector{X: 0.2, Y: 0.25, Z: 0.1}, r3.Vector{X: -30, Y: -50, Z: 380}},
		{r3.Vector{X: -0.1, Y: -0.3, Z: 0.2}, r3.Vector{X: -50, Y: -40, Z: 420}},
	}
	samples := make([]*chessboard.CorrespondenceSample, 0, n)
	for i := 0; i < n; i++ {
		p := poses[i%len(poses)]
		samples = append(samples, projectSample(t, grid, p.rvec, p.tvec))
	}
	return samples
}

func TestCalibrateRecoversKnownCamera(t *testing.T) {
	logger := golog.NewTestLogger(t)
	samples := syntheticSamples(t, 3)

	got, err := NewCalibrator(logger).Calibrate(samples, image.Point{X: 640, Y: 480})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Fx, test.ShouldAlmostEqual, syntheticCamera.Fx, 1e-3)
	test.That(t, got.Fy, test.ShouldAlmostEqual, syntheticCamera.Fy, 1e-3)
	test.That(t, got.Ppx, test.ShouldAlmostEqual, syntheticCamera.Ppx, 1e-3)
	test.That(t, got.Ppy, test.ShouldAlmostEqual, syntheticCamera.Ppy, 1e-3)
	test.That(t, got.ReprojectionError, test.ShouldBeLessThan, 1e-4)
	for _, coeff := range got.Distortion.Parameters() {
		test.That(t, math.Abs(coeff), test.ShouldBeLessThan, 1e-3)
	}
	test.That(t, got.Width, test.ShouldEqual, 640)
	test.That(t, got.Height, test.ShouldEqual, 480)
}

func TestCalibrateInsufficientSamples(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := NewCalibrator(logger).Calibrate(nil, image.Point{X: 640, Y: 480})
	test.That(t, errors.Is(err, ErrInsufficientSamples), test.ShouldBeTrue)

	_, err = NewCalibrator(logger).Calibrate(syntheticSamples(t, 2), image.Point{X: 640, Y: 480})
	test.That(t, errors.Is(err, ErrInsufficientSamples), test.ShouldBeTrue)
}

func TestCalibrateWithMoreSamples(t *testing.T) {
	logger := golog.NewTestLogger(t)
	got, err := NewCalibrator(logger).Calibrate(syntheticSamples(t, 4), image.Point{X: 640, Y: 480})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Fx, test.ShouldAlmostEqual, syntheticCamera.Fx, 1e-3)
	test.That(t, got.ReprojectionError, test.ShouldBeLessThan, 1e-4)
}

func TestQualityLabel(t *testing.T) {
	test.That(t, QualityLabel(0.2), test.ShouldEqual, "excellent")
	test.That(t, QualityLabel(0.7), test.ShouldEqual, "good")
	test.That(t, QualityLabel(1.5), test.ShouldEqual, "acceptable")
	test.That(t, QualityLabel(2.0), test.ShouldEqual, "poor")
	test.That(t, QualityLabel(5.0), test.ShouldEqual, "poor")
}

func TestZhangInitialization(t *testing.T) {
	samples := syntheticSamples(t, 3)
	homographies := make([]*transform.Homography, len(samples))
	for i, sample := range samples {
		h, err := sampleHomography(sample)
		test.That(t, err, test.ShouldBeNil)
		homographies[i] = h
	}
	pinhole, err := intrinsicsFromHomographies(homographies)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pinhole.Fx, test.ShouldAlmostEqual, syntheticCamera.Fx, 1e-4)
	test.That(t, pinhole.Fy, test.ShouldAlmostEqual, syntheticCamera.Fy, 1e-4)
	test.That(t, pinhole.Ppx, test.ShouldAlmostEqual, syntheticCamera.Ppx, 1e-4)
	test.That(t, pinhole.Ppy, test.ShouldAlmostEqual, syntheticCamera.Ppy, 1e-4)

	// extrinsics recovered for the first sample should match its synthetic pose
	rvec, tvec, err := extrinsicsFromHomography(homographies[0], pinhole)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rvec.X, test.ShouldAlmostEqual, 0.1, 1e-4)
	test.That(t, rvec.Y, test.ShouldAlmostEqual, -0.2, 1e-4)
	test.That(t, rvec.Z, test.ShouldAlmostEqual, 0.03, 1e-4)
	test.That(t, tvec.Z, test.ShouldAlmostEqual, 400, 1e-2)
}
