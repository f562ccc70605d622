package calibration

import (
	"image"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/camcal/chessboard"
	"go.viam.com/camcal/spatialmath"
	"go.viam.com/camcal/transform"
)

var (
	// ErrInsufficientSamples is returned when fewer than MinSamples correspondence
	// samples are available; the calibration run cannot proceed.
	ErrInsufficientSamples = errors.New("not enough calibration samples")
	// ErrCalibrationDivergence is returned when the joint refinement fails to converge
	// or produces non-finite intrinsics.
	ErrCalibrationDivergence = errors.New("calibration solve diverged")
)

// MinSamples is the minimum number of samples for a well-posed solve. More (15-20) are
// recommended for numerical stability but not enforced.
const MinSamples = 3

// RecommendedSamples is the sample count above which no stability warning is logged.
const RecommendedSamples = 15

const nIntrinsicParams = 9 // fx, fy, cx, cy, k1, k2, p1, p2, k3

// Calibrator solves for a camera's intrinsic model from correspondence samples.
type Calibrator struct {
	// MaxIterations caps the major iterations of the joint refinement so calibration
	// latency stays bounded.
	MaxIterations int
	logger        golog.Logger
}

// NewCalibrator returns a calibrator with the default refinement iteration cap.
func NewCalibrator(logger golog.Logger) *Calibrator {
	return &Calibrator{MaxIterations: 100, logger: logger}
}

// Calibrate runs the full intrinsic calibration: closed-form initialization from
// per-sample homographies, then joint nonlinear least squares over the intrinsics,
// distortion coefficients and per-sample extrinsics, minimizing total squared
// reprojection error. The samples are read-only inputs. The returned intrinsics carry
// the final RMS reprojection error.
func (c *Calibrator) Calibrate(samples []*chessboard.CorrespondenceSample, imageSize image.Point) (*transform.CameraIntrinsics, error) {
	if len(samples) < MinSamples {
		return nil, errors.Wrapf(ErrInsufficientSamples, "got %d samples, need at least %d", len(samples), MinSamples)
	}
	if len(samples) < RecommendedSamples {
		c.logger.Warnf("calibrating with %d samples; %d or more are recommended for a stable solve", len(samples), RecommendedSamples)
	}

	homographies := make([]*transform.Homography, len(samples))
	for i, sample := range samples {
		h, err := sampleHomography(sample)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot estimate homography for sample %d", i)
		}
		homographies[i] = h
	}

	pinhole, err := intrinsicsFromHomographies(homographies)
	if err != nil {
		return nil, errors.Wrap(ErrCalibrationDivergence, err.Error())
	}
	params := make([]float64, nIntrinsicParams+6*len(samples))
	params[0], params[1], params[2], params[3] = pinhole.Fx, pinhole.Fy, pinhole.Ppx, pinhole.Ppy
	// distortion coefficients start at zero
	for i, h := range homographies {
		rvec, tvec, err := extrinsicsFromHomography(h, pinhole)
		if err != nil {
			return nil, errors.Wrap(ErrCalibrationDivergence, err.Error())
		}
		base := nIntrinsicParams + 6*i
		params[base], params[base+1], params[base+2] = rvec.X, rvec.Y, rvec.Z
		params[base+3], params[base+4], params[base+5] = tvec.X, tvec.Y, tvec.Z
	}

	objective := func(x []float64) float64 {
		return totalSquaredReprojection(x, samples)
	}
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   c.MaxIterations,
		GradientThreshold: 1e-8,
	}

	initial := objective(params)
	result, err := optimize.Minimize(problem, params, settings, &optimize.BFGS{})
	if err != nil && result == nil {
		return nil, errors.Wrap(ErrCalibrationDivergence, err.Error())
	}
	switch {
	case result != nil && !floats.HasNaN(result.X) && !math.IsNaN(result.F) && !math.IsInf(result.F, 0) && result.F <= initial:
		params = result.X
	case err != nil:
		return nil, errors.Wrap(ErrCalibrationDivergence, err.Error())
	}

	for _, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrap(ErrCalibrationDivergence, "refined parameters are not finite")
		}
	}

	totalPoints := 0
	for _, sample := range samples {
		totalPoints += len(sample.Image)
	}
	rms := math.Sqrt(totalSquaredReprojection(params, samples) / float64(totalPoints))
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return nil, errors.Wrap(ErrCalibrationDivergence, "reprojection error is not finite")
	}

	intrinsics := &transform.CameraIntrinsics{
		PinholeCameraIntrinsics: transform.PinholeCameraIntrinsics{
			Width:  imageSize.X,
			Height: imageSize.Y,
			Fx:     params[0],
			Fy:     params[1],
			Ppx:    params[2],
			Ppy:    params[3],
		},
		Distortion: &transform.BrownConrady{
			RadialK1:     params[4],
			RadialK2:     params[5],
			TangentialP1: params[6],
			TangentialP2: params[7],
			RadialK3:     params[8],
		},
		ReprojectionError: rms,
	}
	if err := intrinsics.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrCalibrationDivergence, err.Error())
	}

	c.logger.Infow("calibration finished",
		"rms_px", rms,
		"quality", QualityLabel(rms),
		"samples", len(samples),
	)
	return intrinsics, nil
}

// totalSquaredReprojection evaluates the calibration objective: the sum over all
// samples and grid points of the squared distance between the observed corner and the
// projection of its object point under the packed parameters.
func totalSquaredReprojection(x []float64, samples []*chessboard.CorrespondenceSample) float64 {
	intrinsics := transform.CameraIntrinsics{
		PinholeCameraIntrinsics: transform.PinholeCameraIntrinsics{
			Fx: x[0], Fy: x[1], Ppx: x[2], Ppy: x[3],
		},
		Distortion: &transform.BrownConrady{
			RadialK1:     x[4],
			RadialK2:     x[5],
			TangentialP1: x[6],
			TangentialP2: x[7],
			RadialK3:     x[8],
		},
	}

	var total float64
	for i, sample := range samples {
		base := nIntrinsicParams + 6*i
		rot := spatialmath.NewRotationMatrixFromAxisAngle(r3.Vector{X: x[base], Y: x[base+1], Z: x[base+2]})
		trans := r3.Vector{X: x[base+3], Y: x[base+4], Z: x[base+5]}
		for j := 0; j < sample.Object.Size(); j++ {
			projected := intrinsics.ProjectPoint(rot, trans, sample.Object.At(j))
			diff := projected.Sub(sample.Image[j])
			total += diff.X*diff.X + diff.Y*diff.Y
		}
	}
	return total
}

// QualityLabel classifies an RMS reprojection error (in pixels). The classification is
// advisory; a poor calibration is still usable.
func QualityLabel(rms float64) string {
	switch {
	case rms < 0.5:
		return "excellent"
	case rms < 1.0:
		return "good"
	case rms < 2.0:
		return "acceptable"
	default:
		return "poor"
	}
}
