package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateConfiguration is returned when the correspondences given to the
// homography estimator are rank-deficient (e.g. collinear points).
var ErrDegenerateConfiguration = errors.New("point configuration is degenerate")

// rankTolerance is the relative singular value below which the DLT system is considered
// rank-deficient.
const rankTolerance = 1e-9

// Homography is a 3x3 matrix used to transform a plane from the perspective of one 2D
// view to the perspective of another.
type Homography struct {
	matrix *mat.Dense
}

// NewHomography creates a homography from a row-major slice of 9 values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	return &Homography{mat.NewDense(3, 3, vals)}, nil
}

// At returns the value of the homography at the given index.
func (h *Homography) At(row, col int) float64 {
	return h.matrix.At(row, col)
}

// Col returns the given column of the homography.
func (h *Homography) Col(col int) (float64, float64, float64) {
	return h.matrix.At(0, col), h.matrix.At(1, col), h.matrix.At(2, col)
}

// Apply transforms the given point according to the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// EstimateHomography estimates the homography mapping src points to dst points with the
// normalized direct linear transform. At least 4 correspondences are required; it fails
// with ErrDegenerateConfiguration when the system is rank-deficient, which happens when
// either set of points is collinear or contains coincident points.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("sets of points have different numbers of elements (%d vs %d)", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 point correspondences, got %d", len(src))
	}

	normSrc, tSrc := normalizePoints(src)
	normDst, tDst := normalizePoints(dst)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range normSrc {
		x, y := normSrc[i].X, normSrc[i].Y
		u, v := normDst[i].X, normDst[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize DLT system")
	}
	values := svd.Values(nil)
	if values[7] < rankTolerance*values[0] {
		return nil, ErrDegenerateConfiguration
	}
	var v mat.Dense
	svd.VTo(&v)

	hNorm := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hNorm.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// denormalize: H = T_dst^-1 * H_norm * T_src
	var tDstInv mat.Dense
	if err := tDstInv.Inverse(tDst); err != nil {
		return nil, errors.Wrap(err, "cannot invert normalization transform")
	}
	var hFull mat.Dense
	hFull.Mul(&tDstInv, hNorm)
	hFull.Mul(&hFull, tSrc)

	scale := hFull.At(2, 2)
	if math.Abs(scale) < 1e-15 {
		return nil, ErrDegenerateConfiguration
	}
	hFull.Scale(1/scale, &hFull)
	return &Homography{&hFull}, nil
}

// normalizePoints translates the points to their centroid and scales them so the mean
// distance from the origin is sqrt(2), returning the normalized points and the
// similarity transform that was applied.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	var cx, cy float64
	for _, pt := range pts {
		cx += pt.X
		cy += pt.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var meanDist float64
	for _, pt := range pts {
		meanDist += math.Hypot(pt.X-cx, pt.Y-cy)
	}
	meanDist /= float64(len(pts))
	scale := 1.0
	if meanDist > 0 {
		scale = math.Sqrt2 / meanDist
	}

	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = r2.Point{X: (pt.X - cx) * scale, Y: (pt.Y - cy) * scale}
	}
	t := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})
	return out, t
}
