package pose

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcal/spatialmath"
	"go.viam.com/camcal/transform"
)

var (
	// ErrDegenerateGeometry is returned when the observed corners carry no usable pose
	// information, e.g. three or more are collinear.
	ErrDegenerateGeometry = errors.New("marker corners are geometrically degenerate")
	// ErrPoseEstimationFailed is returned when no pose candidate survives refinement
	// with the marker in front of the camera.
	ErrPoseEstimationFailed = errors.New("no valid marker pose found")
)

const (
	refineStepTolerance = 1e-12
	jacobianStep        = 1e-7
)

// Estimator recovers marker poses for one calibrated camera. It is safe for concurrent
// use; all fields are read-only after construction.
type Estimator struct {
	// MaxIterations caps the Gauss-Newton refinement of each pose candidate.
	MaxIterations int
	intrinsics    *transform.CameraIntrinsics
	extractor     *spatialmath.EulerExtractor
	logger        golog.Logger
}

// NewEstimator returns an estimator for the given calibrated camera.
func NewEstimator(intrinsics *transform.CameraIntrinsics, logger golog.Logger) (*Estimator, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &Estimator{
		MaxIterations: 25,
		intrinsics:    intrinsics,
		extractor:     spatialmath.NewEulerExtractor(),
		logger:        logger,
	}, nil
}

// EstimatePose computes the marker's rigid transform in camera coordinates from one
// observation. The corners are undistorted first, so the homography and refinement work
// against an ideal pinhole model. A plane-to-image homography admits two pose
// interpretations; both are refined on reprojection error, candidates placing the
// marker behind the camera are discarded, and the lower-residual survivor wins.
func (e *Estimator) EstimatePose(template *MarkerTemplate, obs *MarkerObservation) (*MarkerPose, error) {
	src := make([]r2.Point, len(template.Corners))
	und := make([]r2.Point, len(obs.Corners))
	for i := range template.Corners {
		src[i] = r2.Point{X: template.Corners[i].X, Y: template.Corners[i].Y}
		und[i] = e.intrinsics.IdealPixel(obs.Corners[i])
	}

	h, err := transform.EstimateHomography(src, und)
	if err != nil {
		if errors.Is(err, transform.ErrDegenerateConfiguration) {
			return nil, errors.Wrapf(ErrDegenerateGeometry, "marker %d: %v", obs.ID, err)
		}
		return nil, errors.Wrapf(err, "marker %d", obs.ID)
	}

	rot, trans, err := transform.DecomposeHomography(h, &e.intrinsics.PinholeCameraIntrinsics)
	if err != nil {
		return nil, errors.Wrapf(ErrPoseEstimationFailed, "marker %d: %v", obs.ID, err)
	}

	type candidate struct {
		rvec, tvec r3.Vector
		residual   float64
		ok         bool
	}
	candidates := []candidate{{rvec: rot.AxisAngle(), tvec: trans}}
	if reflected, err := reflectedRotation(rot, trans); err == nil {
		candidates = append(candidates, candidate{rvec: reflected.AxisAngle(), tvec: trans})
	}
	best := -1
	for i := range candidates {
		c := &candidates[i]
		rvec, tvec, residual, ok := e.refine(template, und, c.rvec, c.tvec)
		c.rvec, c.tvec, c.residual, c.ok = rvec, tvec, residual, ok
		if !c.ok || c.tvec.Z <= 0 {
			continue
		}
		if best < 0 || c.residual < candidates[best].residual {
			best = i
		}
	}
	if best < 0 {
		e.logger.Debugw("all pose candidates rejected", "marker", obs.ID)
		return nil, errors.Wrapf(ErrPoseEstimationFailed, "marker %d", obs.ID)
	}

	chosen := candidates[best]
	finalRot := spatialmath.NewRotationMatrixFromAxisAngle(chosen.rvec)
	return newMarkerPose(obs.ID, finalRot, chosen.tvec, e.extractor), nil
}

// reflectedRotation builds the second planar-pose interpretation by reflecting the
// rotation about the viewing direction and flipping the plane normal.
func reflectedRotation(rot *spatialmath.RotationMatrix, trans r3.Vector) (*spatialmath.RotationMatrix, error) {
	norm := trans.Norm()
	if norm == 0 {
		return nil, errors.New("translation has zero norm")
	}
	d := trans.Mul(1 / norm)

	// (I - 2ddᵀ) · R · diag(1, 1, -1)
	mirror := [9]float64{
		1 - 2*d.X*d.X, -2 * d.X * d.Y, -2 * d.X * d.Z,
		-2 * d.Y * d.X, 1 - 2*d.Y*d.Y, -2 * d.Y * d.Z,
		-2 * d.Z * d.X, -2 * d.Z * d.Y, 1 - 2*d.Z*d.Z,
	}
	vals := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += mirror[3*i+k] * rot.At(k, j)
			}
			if j == 2 {
				sum = -sum
			}
			vals[3*i+j] = sum
		}
	}
	return spatialmath.NewRotationMatrix(vals)
}

// refine runs Gauss-Newton on the 6-vector (rvec, tvec), minimizing the squared
// pinhole reprojection error of the template corners against the undistorted pixels.
func (e *Estimator) refine(template *MarkerTemplate, und []r2.Point, rvec, tvec r3.Vector) (r3.Vector, r3.Vector, float64, bool) {
	x := []float64{rvec.X, rvec.Y, rvec.Z, tvec.X, tvec.Y, tvec.Z}
	nRes := 2 * len(template.Corners)
	residuals := make([]float64, nRes)
	perturbed := make([]float64, nRes)
	jac := mat.NewDense(nRes, 6, nil)

	e.reprojectionResiduals(template, und, x, residuals)
	cost := floats.Dot(residuals, residuals)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return rvec, tvec, cost, false
	}

	xp := make([]float64, 6)
	for iter := 0; iter < e.MaxIterations; iter++ {
		for j := 0; j < 6; j++ {
			step := jacobianStep * math.Max(1, math.Abs(x[j]))
			copy(xp, x)
			xp[j] = x[j] + step
			e.reprojectionResiduals(template, und, xp, perturbed)
			for i := 0; i < nRes; i++ {
				jac.Set(i, j, (perturbed[i]-residuals[i])/step)
			}
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		jtr := mat.NewVecDense(6, nil)
		jtr.MulVec(jac.T(), mat.NewVecDense(nRes, residuals))
		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, jtr); err != nil {
			return r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]}, cost, iter > 0
		}

		var stepNorm float64
		for j := 0; j < 6; j++ {
			x[j] -= delta.AtVec(j)
			stepNorm += delta.AtVec(j) * delta.AtVec(j)
		}
		e.reprojectionResiduals(template, und, x, residuals)
		cost = floats.Dot(residuals, residuals)
		if math.IsNaN(cost) || math.IsInf(cost, 0) {
			return rvec, tvec, math.Inf(1), false
		}
		if stepNorm < refineStepTolerance {
			break
		}
	}
	return r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]}, cost, true
}

// reprojectionResiduals writes the per-coordinate reprojection residuals of the packed
// pose x into out.
func (e *Estimator) reprojectionResiduals(template *MarkerTemplate, und []r2.Point, x []float64, out []float64) {
	rot := spatialmath.NewRotationMatrixFromAxisAngle(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
	trans := r3.Vector{X: x[3], Y: x[4], Z: x[5]}
	for i, corner := range template.Corners {
		p := rot.Mul(corner).Add(trans)
		u, v := e.intrinsics.PointToPixel(p.X, p.Y, p.Z)
		out[2*i] = u - und[i].X
		out[2*i+1] = v - und[i].Y
	}
}
