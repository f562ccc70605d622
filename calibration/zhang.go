// Package calibration recovers a camera's intrinsic model from correspondence samples of
// a planar pattern: a closed-form homography-based estimate seeds a joint nonlinear
// refinement of intrinsics, distortion and per-sample extrinsics.
package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcal/chessboard"
	"go.viam.com/camcal/transform"
)

// sampleHomography estimates the homography mapping a sample's pattern plane (X, Y of
// the object grid) to its observed pixels.
func sampleHomography(sample *chessboard.CorrespondenceSample) (*transform.Homography, error) {
	src := make([]r2.Point, sample.Object.Size())
	for i := 0; i < sample.Object.Size(); i++ {
		pt := sample.Object.At(i)
		src[i] = r2.Point{X: pt.X, Y: pt.Y}
	}
	return transform.EstimateHomography(src, sample.Image)
}

// intrinsicsFromHomographies solves Zhang's absolute-conic system for the pinhole
// parameters given one plane-to-image homography per sample.
func intrinsicsFromHomographies(homographies []*transform.Homography) (*transform.PinholeCameraIntrinsics, error) {
	v := mat.NewDense(2*len(homographies), 6, nil)
	for i, h := range homographies {
		v.SetRow(2*i, conicConstraint(h, 0, 1))
		row11 := conicConstraint(h, 0, 0)
		row22 := conicConstraint(h, 1, 1)
		diff := make([]float64, 6)
		for k := range diff {
			diff[k] = row11[k] - row22[k]
		}
		v.SetRow(2*i+1, diff)
	}

	var svd mat.SVD
	if ok := svd.Factorize(v, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize conic constraint system")
	}
	var rightVectors mat.Dense
	svd.VTo(&rightVectors)
	b := make([]float64, 6)
	for k := range b {
		b[k] = rightVectors.At(k, 5)
	}

	params, err := conicToIntrinsics(b)
	if err != nil {
		// the null vector's sign is arbitrary; retry negated before giving up
		for k := range b {
			b[k] = -b[k]
		}
		params, err = conicToIntrinsics(b)
		if err != nil {
			return nil, err
		}
	}
	return params, nil
}

// conicConstraint builds the 6-vector v_ij from columns i and j of the homography.
func conicConstraint(h *transform.Homography, i, j int) []float64 {
	hi0, hi1, hi2 := h.At(0, i), h.At(1, i), h.At(2, i)
	hj0, hj1, hj2 := h.At(0, j), h.At(1, j), h.At(2, j)
	return []float64{
		hi0 * hj0,
		hi0*hj1 + hi1*hj0,
		hi1 * hj1,
		hi2*hj0 + hi0*hj2,
		hi2*hj1 + hi1*hj2,
		hi2 * hj2,
	}
}

// conicToIntrinsics extracts the pinhole parameters from the absolute-conic vector
// b = (B11, B12, B22, B13, B23, B33). Skew is discarded; this module models none.
func conicToIntrinsics(b []float64) (*transform.PinholeCameraIntrinsics, error) {
	b11, b12, b22, b13, b23, b33 := b[0], b[1], b[2], b[3], b[4], b[5]

	denom := b11*b22 - b12*b12
	if denom == 0 || b11 == 0 {
		return nil, errors.New("conic system is singular")
	}
	v0 := (b12*b13 - b11*b23) / denom
	lambda := b33 - (b13*b13+v0*(b12*b13-b11*b23))/b11
	if lambda/b11 <= 0 || lambda/denom*b11 <= 0 {
		return nil, errors.New("conic solution is not positive definite")
	}
	fx := math.Sqrt(lambda / b11)
	fy := math.Sqrt(lambda * b11 / denom)
	u0 := -b13 * fx * fx / lambda

	params := &transform.PinholeCameraIntrinsics{Fx: fx, Fy: fy, Ppx: u0, Ppy: v0}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// extrinsicsFromHomography recovers the pattern plane's rigid transform for one sample
// in axis-angle form.
func extrinsicsFromHomography(h *transform.Homography, params *transform.PinholeCameraIntrinsics) (r3.Vector, r3.Vector, error) {
	rot, trans, err := transform.DecomposeHomography(h, params)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}
	return rot.AxisAngle(), trans, nil
}
