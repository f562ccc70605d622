// Package main contains a command to estimate marker poses with a calibrated camera.
// It replays recorded marker observations through the session loop and prints a pose
// report per marker per frame.
package main

import (
	"context"
	"encoding/json"
	"image"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/camcal/pose"
	"go.viam.com/camcal/session"
	"go.viam.com/camcal/transform"
)

var logger = golog.NewDevelopmentLogger("markerpose")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Artifact     string `flag:"artifact,usage=calibration artifact path"`
	Observations string `flag:"observations,usage=recorded marker observations (JSON)"`
	Detail       bool   `flag:"detail,usage=print one detailed pose breakdown"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	cfg := session.DefaultConfig
	if argsParsed.Artifact != "" {
		cfg.ArtifactPath = argsParsed.Artifact
	}
	if argsParsed.Observations == "" {
		return errors.New("an observations file is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// a missing or malformed artifact is fatal; there is no uncalibrated fallback
	intrinsics, err := transform.NewCameraIntrinsicsFromYAMLFile(cfg.ArtifactPath)
	if err != nil {
		return err
	}
	logger.Infow("calibration loaded", "path", cfg.ArtifactPath, "rms_px", intrinsics.ReprojectionError)

	frames, err := loadObservations(argsParsed.Observations)
	if err != nil {
		return err
	}
	return runReplay(ctx, &cfg, intrinsics, frames, argsParsed.Detail, logger)
}

func runReplay(
	ctx context.Context,
	cfg *session.Config,
	intrinsics *transform.CameraIntrinsics,
	frames [][]pose.MarkerObservation,
	detail bool,
	logger golog.Logger,
) error {
	template, err := pose.NewMarkerTemplate(cfg.MarkerSideM)
	if err != nil {
		return err
	}
	estimator, err := pose.NewEstimator(intrinsics, logger)
	if err != nil {
		return err
	}

	commands := make(chan session.Command, len(frames)+1)
	if detail {
		commands <- session.CommandPrintDetailed
	}
	for len(commands) < len(frames) {
		commands <- session.CommandNoOp
	}
	commands <- session.CommandQuit

	feed := &replayFeed{frames: frames}
	loop := session.NewLoop(feed, feed, estimator, template, commands, func(r session.PoseReport) {
		logger.Info(r.Pose.String())
		if r.Detailed {
			logger.Info("\n" + r.Pose.DetailedString())
		}
	}, logger)
	return loop.Run(ctx)
}

// replayFeed serves recorded observations as both the frame source and the detector.
// Frames beyond the recording are blank so the loop can consume its quit command.
type replayFeed struct {
	frames  [][]pose.MarkerObservation
	idx     int
	current []pose.MarkerObservation
}

func (f *replayFeed) NextFrame(ctx context.Context) (image.Image, error) {
	if f.idx < len(f.frames) {
		f.current = f.frames[f.idx]
		f.idx++
	} else {
		f.current = nil
	}
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func (f *replayFeed) Detect(ctx context.Context, frame image.Image) ([]pose.MarkerObservation, error) {
	return f.current, nil
}

type recordedObservation struct {
	ID      int           `json:"id"`
	Corners [4][2]float64 `json:"corners"`
}

type recordedObservations struct {
	Frames [][]recordedObservation `json:"frames"`
}

func loadObservations(path string) ([][]pose.MarkerObservation, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read observations")
	}
	var recorded recordedObservations
	if err := json.Unmarshal(data, &recorded); err != nil {
		return nil, errors.Wrap(err, "cannot parse observations")
	}

	frames := make([][]pose.MarkerObservation, len(recorded.Frames))
	for i, frame := range recorded.Frames {
		frames[i] = make([]pose.MarkerObservation, len(frame))
		for j, obs := range frame {
			out := pose.MarkerObservation{ID: obs.ID}
			for k, corner := range obs.Corners {
				out.Corners[k] = r2.Point{X: corner[0], Y: corner[1]}
			}
			frames[i][j] = out
		}
	}
	return frames, nil
}
