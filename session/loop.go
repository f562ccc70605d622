package session

import (
	"context"
	"image"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/camcal/pose"
)

// FrameSource yields frames in capture order. NextFrame blocks until a frame is
// available or the context ends.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// Detector finds marker observations in one frame. Implementations live outside this
// module; the session only routes their output to the estimator.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]pose.MarkerObservation, error)
}

// PoseReport is one estimated pose emitted by the loop. Detailed is set on exactly the
// first successful estimate after a print request.
type PoseReport struct {
	Pose     *pose.MarkerPose
	Detailed bool
}

// Loop is the frame-synchronous session core: one command dispatched per frame, then
// detection and pose estimation, with per-frame errors logged and recovered.
type Loop struct {
	source    FrameSource
	detector  Detector
	estimator *pose.Estimator
	template  *pose.MarkerTemplate
	commands  <-chan Command
	prints    *PrintRequests
	report    func(PoseReport)
	logger    golog.Logger

	// OnCapture, if set, receives the current frame when CommandCaptureSample arrives.
	OnCapture func(image.Image)
}

// NewLoop assembles a session loop. The commands channel is read non-blocking, one
// command per frame; report is called synchronously for every estimated pose.
func NewLoop(
	source FrameSource,
	detector Detector,
	estimator *pose.Estimator,
	template *pose.MarkerTemplate,
	commands <-chan Command,
	report func(PoseReport),
	logger golog.Logger,
) *Loop {
	return &Loop{
		source:    source,
		detector:  detector,
		estimator: estimator,
		template:  template,
		commands:  commands,
		prints:    NewPrintRequests(),
		report:    report,
		logger:    logger,
	}
}

// Run drives the session until CommandQuit or context cancellation. Per-frame failures
// (no frame, detector error, degenerate or unsolvable markers) are logged and the loop
// continues with the next frame.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := l.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "frame source failed")
		}

		switch l.nextCommand() {
		case CommandQuit:
			return nil
		case CommandPrintDetailed:
			l.prints.Request()
		case CommandCaptureSample:
			if l.OnCapture != nil {
				l.OnCapture(frame)
			}
		case CommandNoOp:
		}

		observations, err := l.detector.Detect(ctx, frame)
		if err != nil {
			l.logger.Debugw("marker detection failed", "error", err)
			continue
		}
		for i := range observations {
			obs := &observations[i]
			markerPose, err := l.estimator.EstimatePose(l.template, obs)
			if err != nil {
				switch {
				case errors.Is(err, pose.ErrDegenerateGeometry), errors.Is(err, pose.ErrPoseEstimationFailed):
					l.logger.Debugw("marker skipped", "marker", obs.ID, "error", err)
					continue
				default:
					return err
				}
			}
			l.report(PoseReport{Pose: markerPose, Detailed: l.prints.TakeRequest()})
		}
	}
}

// nextCommand drains at most one pending command without blocking the frame cadence.
func (l *Loop) nextCommand() Command {
	select {
	case cmd, ok := <-l.commands:
		if !ok {
			return CommandQuit
		}
		return cmd
	default:
		return CommandNoOp
	}
}
