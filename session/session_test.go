package session

import (
	"context"
	"image"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/camcal/pose"
	"go.viam.com/camcal/spatialmath"
	"go.viam.com/camcal/transform"
)

var sessionCamera = &transform.CameraIntrinsics{
	PinholeCameraIntrinsics: transform.PinholeCameraIntrinsics{
		Width: 1280, Height: 720,
		Fx: 900, Fy: 910, Ppx: 640, Ppy: 360,
	},
	Distortion: &transform.BrownConrady{},
}

type fakeSource struct{ frames int }

func (s *fakeSource) NextFrame(ctx context.Context) (image.Image, error) {
	s.frames++
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

type fakeDetector struct{ observations []pose.MarkerObservation }

func (d *fakeDetector) Detect(ctx context.Context, frame image.Image) ([]pose.MarkerObservation, error) {
	return d.observations, nil
}

func markerObservation(t *testing.T, template *pose.MarkerTemplate) pose.MarkerObservation {
	t.Helper()
	rot := spatialmath.NewRotationMatrixFromAxisAngle(r3.Vector{X: 0.1, Y: -0.15, Z: 0.05})
	tvec := r3.Vector{X: 0.02, Y: -0.03, Z: 0.5}
	obs := pose.MarkerObservation{ID: 4}
	for i, corner := range template.Corners {
		obs.Corners[i] = sessionCamera.ProjectPoint(rot, tvec, corner)
	}
	return obs
}

func newTestLoop(t *testing.T, detector Detector, commands <-chan Command, report func(PoseReport)) *Loop {
	t.Helper()
	logger := golog.NewTestLogger(t)
	template, err := pose.NewMarkerTemplate(pose.DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := pose.NewEstimator(sessionCamera, logger)
	test.That(t, err, test.ShouldBeNil)
	return NewLoop(&fakeSource{}, detector, estimator, template, commands, report, logger)
}

func TestPrintRequestsSingleSlot(t *testing.T) {
	pr := NewPrintRequests()
	test.That(t, pr.TakeRequest(), test.ShouldBeFalse)
	test.That(t, pr.Request(), test.ShouldBeTrue)
	// further requests are absorbed by the pending one
	test.That(t, pr.Request(), test.ShouldBeFalse)
	test.That(t, pr.TakeRequest(), test.ShouldBeTrue)
	test.That(t, pr.TakeRequest(), test.ShouldBeFalse)
}

func TestLoopDetailedPrintIsOneShot(t *testing.T) {
	template, err := pose.NewMarkerTemplate(pose.DefaultMarkerSide)
	test.That(t, err, test.ShouldBeNil)
	detector := &fakeDetector{observations: []pose.MarkerObservation{markerObservation(t, template)}}

	commands := make(chan Command, 3)
	commands <- CommandPrintDetailed
	commands <- CommandNoOp
	commands <- CommandQuit

	var reports []PoseReport
	loop := newTestLoop(t, detector, commands, func(r PoseReport) { reports = append(reports, r) })
	test.That(t, loop.Run(context.Background()), test.ShouldBeNil)

	// two frames produce poses before the quit frame; only the first is detailed
	test.That(t, len(reports), test.ShouldEqual, 2)
	test.That(t, reports[0].Detailed, test.ShouldBeTrue)
	test.That(t, reports[1].Detailed, test.ShouldBeFalse)
	test.That(t, reports[0].Pose.ID, test.ShouldEqual, 4)
}

func TestLoopCaptureHook(t *testing.T) {
	detector := &fakeDetector{}
	commands := make(chan Command, 2)
	commands <- CommandCaptureSample
	commands <- CommandQuit

	loop := newTestLoop(t, detector, commands, func(PoseReport) {})
	captured := 0
	loop.OnCapture = func(image.Image) { captured++ }
	test.That(t, loop.Run(context.Background()), test.ShouldBeNil)
	test.That(t, captured, test.ShouldEqual, 1)
}

func TestLoopQuitsOnClosedCommands(t *testing.T) {
	commands := make(chan Command)
	close(commands)
	loop := newTestLoop(t, &fakeDetector{}, commands, func(PoseReport) {})
	test.That(t, loop.Run(context.Background()), test.ShouldBeNil)
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop := newTestLoop(t, &fakeDetector{}, make(chan Command), func(PoseReport) {})
	test.That(t, loop.Run(ctx), test.ShouldEqual, context.Canceled)
}

func TestLoopRecoversFromDegenerateMarkers(t *testing.T) {
	// collinear corners must not end the session
	detector := &fakeDetector{observations: []pose.MarkerObservation{{
		ID: 9,
		Corners: [4]r2.Point{
			{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 300, Y: 100}, {X: 400, Y: 100},
		},
	}}}
	commands := make(chan Command, 2)
	commands <- CommandNoOp
	commands <- CommandQuit

	var reports []PoseReport
	loop := newTestLoop(t, detector, commands, func(r PoseReport) { reports = append(reports, r) })
	test.That(t, loop.Run(context.Background()), test.ShouldBeNil)
	test.That(t, len(reports), test.ShouldEqual, 0)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.PatternRows, test.ShouldEqual, 7)
	test.That(t, cfg.PatternCols, test.ShouldEqual, 9)
	test.That(t, cfg.SquareSizeMM, test.ShouldEqual, 16.5)
	test.That(t, cfg.MarkerSideM, test.ShouldEqual, 0.094)

	bad := DefaultConfig
	bad.PatternRows = 1
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = DefaultConfig
	bad.SquareSizeMM = 0
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = DefaultConfig
	bad.ArtifactPath = ""
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = DefaultConfig
	bad.CameraIndex = -1
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
}

func TestCommandString(t *testing.T) {
	test.That(t, CommandNoOp.String(), test.ShouldEqual, "noop")
	test.That(t, CommandQuit.String(), test.ShouldEqual, "quit")
	test.That(t, CommandPrintDetailed.String(), test.ShouldEqual, "print_detailed")
	test.That(t, CommandCaptureSample.String(), test.ShouldEqual, "capture_sample")
	test.That(t, Command(42).String(), test.ShouldEqual, "unknown")
}
